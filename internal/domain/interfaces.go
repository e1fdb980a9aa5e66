package domain

import "context"

// Transformer turns one source image into a slide result
type Transformer interface {
	// Transform decodes, optionally rescales and persists the image, and
	// reports where it belongs on the canvas
	Transform(ctx context.Context, img SourceImage, resizeFactor float64) (SlideResult, error)
}

// ArtifactRegistry tracks transient files for guaranteed cleanup
type ArtifactRegistry interface {
	// Register records a path at creation time so it is reaped even if the
	// task that created it later fails
	Register(path TransientArtifact)
}
