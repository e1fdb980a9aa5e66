package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EMUPerInch is the number of English Metric Units in one inch.
const EMUPerInch = 914400

// DefaultDPI is the baseline resolution assumed when an image carries none.
const DefaultDPI = 96.0

// CanvasSpec is the fixed page size of the output document, in EMU
type CanvasSpec struct {
	Width  int64 `json:"width" yaml:"width"`
	Height int64 `json:"height" yaml:"height"`
}

// Canvas presets
var (
	CanvasWidescreen = CanvasSpec{Width: 12192000, Height: 6858000} // 13.333in x 7.5in, 16:9
	CanvasStandard   = CanvasSpec{Width: 9144000, Height: 6858000}  // 10in x 7.5in, 4:3
)

// Valid reports whether both canvas dimensions are positive.
func (c CanvasSpec) Valid() bool {
	return c.Width > 0 && c.Height > 0
}

func (c CanvasSpec) String() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// ParseCanvas resolves a preset name ("widescreen", "standard") or an
// explicit "WIDTHxHEIGHT" pair in EMU.
func ParseCanvas(s string) (CanvasSpec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "widescreen", "16:9":
		return CanvasWidescreen, nil
	case "standard", "4:3":
		return CanvasStandard, nil
	}

	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return CanvasSpec{}, ConfigError(fmt.Sprintf("unknown canvas %q", s), nil)
	}
	width, err := strconv.ParseInt(strings.TrimSpace(w), 10, 64)
	if err != nil {
		return CanvasSpec{}, ConfigError(fmt.Sprintf("invalid canvas width in %q", s), err)
	}
	height, err := strconv.ParseInt(strings.TrimSpace(h), 10, 64)
	if err != nil {
		return CanvasSpec{}, ConfigError(fmt.Sprintf("invalid canvas height in %q", s), err)
	}
	canvas := CanvasSpec{Width: width, Height: height}
	if err := canvas.CheckSlideSize(); err != nil {
		return CanvasSpec{}, err
	}
	return canvas, nil
}

// Slide size limits accepted by PowerPoint: 1in to 56in per side.
const (
	MinSlideSide int64 = 914400
	MaxSlideSide int64 = 51206400
)

// CheckSlideSize reports an error unless both sides are within the slide
// size range presentation apps accept.
func (c CanvasSpec) CheckSlideSize() error {
	for _, side := range []int64{c.Width, c.Height} {
		if side < MinSlideSide || side > MaxSlideSide {
			return ConfigError(fmt.Sprintf("canvas %s out of range: each side must be %d..%d EMU",
				c, MinSlideSide, MaxSlideSide), nil)
		}
	}
	return nil
}

// SourceImage is one input image. Index is 1-based and defines slide order.
// Width, Height and the DPI fields are filled in once the image is decoded.
type SourceImage struct {
	Index  int     `json:"index"`
	Path   string  `json:"path"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	DPIX   float64 `json:"dpi_x,omitempty"`
	DPIY   float64 `json:"dpi_y,omitempty"`
}

// Placement is the rectangle an image occupies on the canvas, in EMU
type Placement struct {
	Left   int64 `json:"left"`
	Top    int64 `json:"top"`
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (p Placement) Right() int64 { return p.Left + p.Width }

// Bottom returns the y coordinate of the bottom edge.
func (p Placement) Bottom() int64 { return p.Top + p.Height }

// TransientArtifact is the path of an intermediate file that must not outlive the run
type TransientArtifact = string

// SlideResult is produced once per SourceImage and consumed once by the assembler
type SlideResult struct {
	Index     int               `json:"index"`
	Placement Placement         `json:"placement"`
	Artifact  TransientArtifact `json:"artifact"`
}
