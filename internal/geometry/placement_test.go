package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pptx-builder/internal/domain"
)

func assertPlacementInvariants(t *testing.T, canvas domain.CanvasSpec, w, h int64, p domain.Placement) {
	t.Helper()

	assert.GreaterOrEqual(t, p.Left, int64(0))
	assert.GreaterOrEqual(t, p.Top, int64(0))
	assert.LessOrEqual(t, p.Right(), canvas.Width)
	assert.LessOrEqual(t, p.Bottom(), canvas.Height)

	// Centered: opposite margins differ by at most one unit of truncation.
	assert.InDelta(t, p.Left, canvas.Width-p.Right(), 1)
	assert.InDelta(t, p.Top, canvas.Height-p.Bottom(), 1)

	// One axis fills the canvas.
	assert.True(t, p.Width == canvas.Width || p.Height == canvas.Height,
		"expected one axis to fill the canvas, got %+v", p)

	// Aspect ratio within one unit of truncation on the minor axis.
	src := float64(w) / float64(h)
	got := float64(p.Width) / float64(p.Height)
	tolerance := src * (1/float64(p.Width) + 1/float64(p.Height))
	assert.InDelta(t, src, got, tolerance)
}

func TestComputePlacement_Scenario4by3Canvas(t *testing.T) {
	canvas := domain.CanvasStandard

	tests := []struct {
		name   string
		w, h   int
		expect domain.Placement
	}{
		{
			name:   "800x600 fills the 4:3 canvas",
			w:      800,
			h:      600,
			expect: domain.Placement{Left: 0, Top: 0, Width: 9144000, Height: 6858000},
		},
		{
			name:   "1920x1080 is letterboxed",
			w:      1920,
			h:      1080,
			expect: domain.Placement{Left: 0, Top: 857250, Width: 9144000, Height: 5143500},
		},
		{
			name:   "400x400 is pillarboxed",
			w:      400,
			h:      400,
			expect: domain.Placement{Left: 1143000, Top: 0, Width: 6858000, Height: 6858000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iw := PhysicalSize(tt.w, domain.DefaultDPI)
			ih := PhysicalSize(tt.h, domain.DefaultDPI)

			p, err := ComputePlacement(canvas, iw, ih)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, p)
			assertPlacementInvariants(t, canvas, iw, ih, p)
		})
	}
}

func TestComputePlacement_Invariants(t *testing.T) {
	canvases := []domain.CanvasSpec{
		domain.CanvasWidescreen,
		domain.CanvasStandard,
		{Width: 1000, Height: 3000},
		{Width: 7, Height: 5},
	}
	sizes := [][2]int64{
		{1, 1}, {3, 7}, {1920, 1080}, {1080, 1920}, {638, 359},
		{9144000, 6858000}, {123456789, 98765}, {2048, 1152},
	}

	for _, c := range canvases {
		for _, s := range sizes {
			p, err := ComputePlacement(c, s[0], s[1])
			if err != nil {
				assert.True(t, domain.IsKind(err, domain.ErrorKindInvalidDimensions))
				continue
			}
			assertPlacementInvariants(t, c, s[0], s[1], p)
		}
	}
}

func TestComputePlacement_ScaleIndependent(t *testing.T) {
	canvas := domain.CanvasWidescreen

	base, err := ComputePlacement(canvas, 1600, 900)
	require.NoError(t, err)

	for _, k := range []int64{2, 3, 10, 1000} {
		p, err := ComputePlacement(canvas, 1600*k, 900*k)
		require.NoError(t, err)
		assert.Equal(t, base, p, "factor %d", k)
	}
}

func TestComputePlacement_InvalidDimensions(t *testing.T) {
	tests := []struct {
		name   string
		canvas domain.CanvasSpec
		w, h   int64
	}{
		{"zero width", domain.CanvasStandard, 0, 10},
		{"negative height", domain.CanvasStandard, 10, -1},
		{"zero canvas", domain.CanvasSpec{}, 10, 10},
		{"collapses", domain.CanvasSpec{Width: 10, Height: 10}, 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputePlacement(tt.canvas, tt.w, tt.h)
			require.Error(t, err)
			assert.Equal(t, domain.ErrorKindInvalidDimensions, domain.KindOf(err))
		})
	}
}

func TestPhysicalSize(t *testing.T) {
	assert.Equal(t, int64(914400), PhysicalSize(96, 96))
	assert.Equal(t, int64(914400), PhysicalSize(300, 300))
	assert.Equal(t, int64(457200), PhysicalSize(48, 0))
	assert.Equal(t, int64(1828800), PhysicalSize(144, 72))
}
