// Package transform loads one source image, optionally rescales it, persists
// it as a normalized PNG artifact and computes its placement on the canvas.
package transform

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/geometry"
	"github.com/spherical/pptx-builder/internal/observability"
)

// Options configures a Stage.
type Options struct {
	Canvas domain.CanvasSpec
	// TempDir receives the transient artifacts. It must exist.
	TempDir string
	// DefaultDPI is used when the source carries no resolution.
	DefaultDPI float64
	Registry   domain.ArtifactRegistry
	Logger     *observability.Logger
}

// Stage implements domain.Transformer. A Stage holds no per-image state and
// is safe for concurrent use.
type Stage struct {
	canvas     domain.CanvasSpec
	tempDir    string
	defaultDPI float64
	registry   domain.ArtifactRegistry
	logger     *observability.Logger
}

// NewStage creates a transform stage.
func NewStage(opts Options) (*Stage, error) {
	if !opts.Canvas.Valid() {
		return nil, domain.InvalidDimensionsError(fmt.Sprintf("invalid canvas %s", opts.Canvas), nil)
	}
	if opts.TempDir == "" {
		return nil, domain.ConfigError("transform stage requires a temp dir", nil)
	}
	if opts.Registry == nil {
		return nil, domain.ConfigError("transform stage requires an artifact registry", nil)
	}
	if opts.DefaultDPI <= 0 {
		opts.DefaultDPI = domain.DefaultDPI
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	return &Stage{
		canvas:     opts.Canvas,
		tempDir:    opts.TempDir,
		defaultDPI: opts.DefaultDPI,
		registry:   opts.Registry,
		logger:     opts.Logger.WithComponent("transform"),
	}, nil
}

// Transform decodes img, rescales it by resizeFactor when that is not 1,
// writes it to a new transient PNG and returns its slide result.
//
// The artifact is registered before anything is written to it, so a task
// that fails while persisting still leaves its file reachable for cleanup.
// ctx is only consulted before the artifact is created; once a file exists
// the task runs to completion.
func (s *Stage) Transform(ctx context.Context, img domain.SourceImage, resizeFactor float64) (domain.SlideResult, error) {
	start := time.Now()

	if math.IsNaN(resizeFactor) || math.IsInf(resizeFactor, 0) || resizeFactor <= 0 {
		return domain.SlideResult{}, domain.InvalidScaleError(
			fmt.Sprintf("resize factor must be > 0, got %v", resizeFactor), nil)
	}
	if err := ctx.Err(); err != nil {
		return domain.SlideResult{}, err
	}

	decoded, res, err := s.decode(img.Path)
	if err != nil {
		return domain.SlideResult{}, err
	}

	bounds := decoded.Bounds()
	img.Width, img.Height = bounds.Dx(), bounds.Dy()
	img.DPIX, img.DPIY = res.X, res.Y

	// Placement comes from the source size so it does not depend on the
	// transient resolution.
	placement, err := geometry.ComputePlacement(s.canvas,
		geometry.PhysicalSize(img.Width, img.DPIX),
		geometry.PhysicalSize(img.Height, img.DPIY))
	if err != nil {
		return domain.SlideResult{}, err
	}

	out := image.Image(decoded)
	if resizeFactor != 1.0 {
		w, h, err := scaledSize(img.Width, img.Height, resizeFactor)
		if err != nil {
			return domain.SlideResult{}, err
		}
		out = imaging.Resize(decoded, w, h, imaging.Lanczos)
		s.logger.Debug().
			Int("index", img.Index).
			Int("from_width", img.Width).Int("from_height", img.Height).
			Int("to_width", w).Int("to_height", h).
			Msg("Resized image")
	}

	if err := ctx.Err(); err != nil {
		return domain.SlideResult{}, err
	}

	artifact, err := s.persist(img.Index, out)
	if err != nil {
		return domain.SlideResult{}, err
	}

	s.logger.Info().
		Int("index", img.Index).
		Str("source", img.Path).
		Str("artifact", artifact).
		Float64("dpi_x", img.DPIX).Float64("dpi_y", img.DPIY).
		Dur("took", time.Since(start)).
		Msg("Transformed image")

	return domain.SlideResult{
		Index:     img.Index,
		Placement: placement,
		Artifact:  artifact,
	}, nil
}

// decode opens and decodes the image at path along with its resolution.
func (s *Stage) decode(path string) (image.Image, Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Resolution{}, domain.DecodeError(fmt.Sprintf("cannot open image %s", path), err)
	}
	defer f.Close()

	res, ok := readResolution(f)
	if !ok {
		res = Resolution{X: s.defaultDPI, Y: s.defaultDPI}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, Resolution{}, domain.DecodeError(fmt.Sprintf("cannot read image %s", path), err)
	}

	decoded, err := imaging.Decode(f)
	if err != nil {
		return nil, Resolution{}, domain.DecodeError(fmt.Sprintf("cannot decode image %s", path), err)
	}
	return decoded, res, nil
}

// persist writes img as PNG to a newly allocated transient path.
func (s *Stage) persist(index int, img image.Image) (domain.TransientArtifact, error) {
	f, err := os.CreateTemp(s.tempDir, fmt.Sprintf("slide-%03d-*.png", index))
	if err != nil {
		return "", domain.PersistError(fmt.Sprintf("cannot create artifact for image %d", index), err)
	}
	s.registry.Register(f.Name())

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return "", domain.PersistError(fmt.Sprintf("cannot encode artifact %s", f.Name()), err)
	}
	if err := f.Close(); err != nil {
		return "", domain.PersistError(fmt.Sprintf("cannot write artifact %s", f.Name()), err)
	}
	return f.Name(), nil
}

// MaxResizedSide bounds either side of a resized image in pixels.
const MaxResizedSide = 1 << 15

// scaledSize applies factor to both sides, rounding, with a minimum of 1.
func scaledSize(width, height int, factor float64) (int, int, error) {
	fw := math.Round(float64(width) * factor)
	fh := math.Round(float64(height) * factor)
	if fw > MaxResizedSide || fh > MaxResizedSide {
		return 0, 0, domain.InvalidScaleError(fmt.Sprintf(
			"resize factor %v turns %dx%d into %.0fx%.0f, above the %d px limit",
			factor, width, height, fw, fh, MaxResizedSide), nil)
	}
	return max(int(fw), 1), max(int(fh), 1), nil
}
