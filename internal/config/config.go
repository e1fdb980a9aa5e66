// Package config provides configuration loading for pptx-builder.
// Supports YAML files, a .env file, environment variables and
// programmatic overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/pptx-builder/internal/domain"
)

// Config holds all configuration for a conversion run.
type Config struct {
	Canvas        CanvasConfig        `yaml:"canvas"`
	Transform     TransformConfig     `yaml:"transform"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Fetch         FetchConfig         `yaml:"fetch"`
	PDF           PDFConfig           `yaml:"pdf"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CanvasConfig selects the output page size. Width and Height (EMU) win
// over Preset when both are set.
type CanvasConfig struct {
	Preset string `yaml:"preset"`
	Width  int64  `yaml:"width"`
	Height int64  `yaml:"height"`
}

// TransformConfig holds per-image transform settings.
type TransformConfig struct {
	ResizeFactor float64 `yaml:"resize_factor"`
	// DefaultDPI is assumed for images that carry no resolution metadata.
	DefaultDPI float64 `yaml:"default_dpi"`
	// TempDir is the parent of the run's transient directory; empty means os.TempDir().
	TempDir string `yaml:"temp_dir"`
}

// PipelineConfig holds worker pool settings.
type PipelineConfig struct {
	MaxWorkers  int           `yaml:"max_workers"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// FetchConfig holds settings for remote image sources.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// PDFConfig holds settings for PDF page sources.
type PDFConfig struct {
	DPI float64 `yaml:"dpi"`
}

// OutputConfig holds output document settings.
type OutputConfig struct {
	Path   string       `yaml:"path"`
	Upload UploadConfig `yaml:"upload"`
}

// UploadConfig holds S3-compatible publishing settings.
type UploadConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
	Secure    bool   `yaml:"secure"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Preset: "widescreen",
		},
		Transform: TransformConfig{
			ResizeFactor: 1.0,
			DefaultDPI:   domain.DefaultDPI,
		},
		Pipeline: PipelineConfig{
			MaxWorkers: 4,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		},
		PDF: PDFConfig{
			DPI: 150,
		},
		Output: OutputConfig{
			Upload: UploadConfig{
				Secure: true,
				Prefix: "decks/",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// CanvasSpec resolves the configured canvas.
func (c *Config) CanvasSpec() (domain.CanvasSpec, error) {
	if c.Canvas.Width != 0 || c.Canvas.Height != 0 {
		canvas := domain.CanvasSpec{Width: c.Canvas.Width, Height: c.Canvas.Height}
		if err := canvas.CheckSlideSize(); err != nil {
			return domain.CanvasSpec{}, err
		}
		return canvas, nil
	}
	return domain.ParseCanvas(c.Canvas.Preset)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.CanvasSpec(); err != nil {
		return err
	}

	f := c.Transform.ResizeFactor
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return domain.InvalidScaleError(fmt.Sprintf("resize factor must be > 0, got %v", f), nil)
	}

	if c.Transform.DefaultDPI <= 0 {
		return domain.ConfigError(fmt.Sprintf("default_dpi must be > 0, got %v", c.Transform.DefaultDPI), nil)
	}

	if c.Pipeline.MaxWorkers < 1 {
		return domain.ConfigError(fmt.Sprintf("max_workers must be >= 1, got %d", c.Pipeline.MaxWorkers), nil)
	}

	if c.Pipeline.TaskTimeout < 0 {
		return domain.ConfigError("task_timeout must not be negative", nil)
	}

	if c.PDF.DPI <= 0 {
		return domain.ConfigError(fmt.Sprintf("pdf dpi must be > 0, got %v", c.PDF.DPI), nil)
	}

	if c.Output.Upload.Enabled {
		if c.Output.Upload.Endpoint == "" || c.Output.Upload.Bucket == "" {
			return domain.ConfigError("upload requires endpoint and bucket", nil)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PPTX_CANVAS"); v != "" {
		cfg.Canvas.Preset = v
		cfg.Canvas.Width, cfg.Canvas.Height = 0, 0
	}

	if v := os.Getenv("PPTX_RESIZE_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Transform.ResizeFactor = f
		}
	}

	if v := os.Getenv("PPTX_DEFAULT_DPI"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Transform.DefaultDPI = f
		}
	}

	if v := os.Getenv("PPTX_OUTPUT"); v != "" {
		cfg.Output.Path = v
	}

	if v := os.Getenv("PPTX_TEMP_DIR"); v != "" {
		cfg.Transform.TempDir = v
	}

	if v := os.Getenv("PPTX_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxWorkers = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Output.Upload.Endpoint = v
	}

	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Output.Upload.Bucket = v
	}

	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Output.Upload.Region = v
	}

	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Output.Upload.AccessKey = v
	}

	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Output.Upload.SecretKey = v
	}
}
