package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pptx-builder/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	canvas, err := cfg.CanvasSpec()
	require.NoError(t, err)
	assert.Equal(t, domain.CanvasWidescreen, canvas)
	assert.Equal(t, 1.0, cfg.Transform.ResizeFactor)
	assert.Equal(t, 96.0, cfg.Transform.DefaultDPI)
	assert.Equal(t, 4, cfg.Pipeline.MaxWorkers)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pptx.yaml")
	yamlData := `
canvas:
  preset: standard
transform:
  resize_factor: 0.5
pipeline:
  max_workers: 8
  task_timeout: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("PPTX_DEFAULT_DPI", "72")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	canvas, err := cfg.CanvasSpec()
	require.NoError(t, err)
	assert.Equal(t, domain.CanvasStandard, canvas)
	assert.Equal(t, 0.5, cfg.Transform.ResizeFactor)
	assert.Equal(t, 8, cfg.Pipeline.MaxWorkers)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.TaskTimeout)
	assert.Equal(t, 72.0, cfg.Transform.DefaultDPI)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_OutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pptx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  path: decks/out.pptx\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "decks/out.pptx", cfg.Output.Path)

	t.Setenv("PPTX_OUTPUT", "env.pptx")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.pptx", cfg.Output.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		kind   domain.ErrorKind
	}{
		{"zero resize factor", func(c *Config) { c.Transform.ResizeFactor = 0 }, domain.ErrorKindInvalidScale},
		{"negative resize factor", func(c *Config) { c.Transform.ResizeFactor = -1 }, domain.ErrorKindInvalidScale},
		{"zero workers", func(c *Config) { c.Pipeline.MaxWorkers = 0 }, domain.ErrorKindInvalidConfig},
		{"bad preset", func(c *Config) { c.Canvas.Preset = "cinema" }, domain.ErrorKindInvalidConfig},
		{"half explicit canvas", func(c *Config) { c.Canvas.Width = 100 }, domain.ErrorKindInvalidConfig},
		{"zero dpi", func(c *Config) { c.Transform.DefaultDPI = 0 }, domain.ErrorKindInvalidConfig},
		{"upload without bucket", func(c *Config) {
			c.Output.Upload.Enabled = true
			c.Output.Upload.Endpoint = "s3.local"
		}, domain.ErrorKindInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
		})
	}
}

func TestCanvasSpec_ExplicitWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Canvas.Width = 9144000
	cfg.Canvas.Height = 5143500

	canvas, err := cfg.CanvasSpec()
	require.NoError(t, err)
	assert.Equal(t, domain.CanvasSpec{Width: 9144000, Height: 5143500}, canvas)
}

func TestCanvasSpec_RejectsUnsupportedSlideSizes(t *testing.T) {
	for _, c := range []domain.CanvasSpec{
		{Width: 5000, Height: 4000},
		{Width: 914399, Height: 6858000},
		{Width: 9144000, Height: 51206401},
	} {
		cfg := DefaultConfig()
		cfg.Canvas.Width, cfg.Canvas.Height = c.Width, c.Height

		_, err := cfg.CanvasSpec()
		require.Error(t, err, "canvas %s", c)
		assert.Equal(t, domain.ErrorKindInvalidConfig, domain.KindOf(err))
		assert.Error(t, cfg.Validate())
	}

	cfg := DefaultConfig()
	cfg.Canvas.Width, cfg.Canvas.Height = domain.MinSlideSide, domain.MaxSlideSide
	_, err := cfg.CanvasSpec()
	assert.NoError(t, err)
}
