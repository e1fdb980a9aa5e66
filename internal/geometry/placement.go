// Package geometry computes where a scaled image sits on a fixed canvas.
package geometry

import (
	"fmt"

	"github.com/spherical/pptx-builder/internal/domain"
)

// ComputePlacement scales an image of imgWidth x imgHeight to the largest
// size that fits the canvas without distortion and centers it.
//
// The binding axis is chosen by integer cross-multiplication, so the image
// fills that axis exactly; the other axis and both offsets are truncated.
func ComputePlacement(canvas domain.CanvasSpec, imgWidth, imgHeight int64) (domain.Placement, error) {
	if !canvas.Valid() {
		return domain.Placement{}, domain.InvalidDimensionsError(
			fmt.Sprintf("canvas dimensions must be positive, got %s", canvas), nil)
	}
	if imgWidth <= 0 || imgHeight <= 0 {
		return domain.Placement{}, domain.InvalidDimensionsError(
			fmt.Sprintf("image dimensions must be positive, got %dx%d", imgWidth, imgHeight), nil)
	}

	var width, height int64
	// cw/iw <= ch/ih  <=>  cw*ih <= ch*iw
	if mulCompare(canvas.Width, imgHeight, canvas.Height, imgWidth) <= 0 {
		width = canvas.Width
		height = mulDiv(imgHeight, canvas.Width, imgWidth)
	} else {
		height = canvas.Height
		width = mulDiv(imgWidth, canvas.Height, imgHeight)
	}

	// Extreme aspect ratios can truncate the minor axis to zero.
	if width <= 0 || height <= 0 {
		return domain.Placement{}, domain.InvalidDimensionsError(
			fmt.Sprintf("image %dx%d collapses to zero size on canvas %s", imgWidth, imgHeight, canvas), nil)
	}

	return domain.Placement{
		Left:   (canvas.Width - width) / 2,
		Top:    (canvas.Height - height) / 2,
		Width:  width,
		Height: height,
	}, nil
}

// PhysicalSize converts a pixel count to EMU at the given resolution.
// A non-positive dpi falls back to domain.DefaultDPI.
func PhysicalSize(px int, dpi float64) int64 {
	if dpi <= 0 {
		dpi = domain.DefaultDPI
	}
	return int64(float64(px) * domain.EMUPerInch / dpi)
}
