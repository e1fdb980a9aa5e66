// Package converter runs a full conversion: resolve the inputs, transform
// them in parallel, assemble the document in input order, save it, publish
// it when asked, and reap every transient file on the way out.
package converter

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/pptx-builder/internal/config"
	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/observability"
	"github.com/spherical/pptx-builder/internal/pipeline"
	"github.com/spherical/pptx-builder/internal/pptx"
	"github.com/spherical/pptx-builder/internal/reaper"
	"github.com/spherical/pptx-builder/internal/source"
	"github.com/spherical/pptx-builder/internal/transform"
)

// Publisher uploads a finished document and returns where it can be found.
type Publisher interface {
	Publish(ctx context.Context, localPath, runID string) (string, error)
}

// PublisherFactory opens a publisher for one run.
type PublisherFactory func(ctx context.Context) (Publisher, error)

// Request describes one conversion run.
type Request struct {
	// Inputs are image paths, directories, URLs or PDFs, in slide order.
	Inputs       []string
	OutputPath   string
	Canvas       domain.CanvasSpec
	ResizeFactor float64
	MaxWorkers   int
	TaskTimeout  time.Duration
	Upload       bool
}

// NewRequest fills a request from configuration.
func NewRequest(cfg *config.Config, inputs []string, outputPath string) (Request, error) {
	canvas, err := cfg.CanvasSpec()
	if err != nil {
		return Request{}, err
	}
	return Request{
		Inputs:       inputs,
		OutputPath:   outputPath,
		Canvas:       canvas,
		ResizeFactor: cfg.Transform.ResizeFactor,
		MaxWorkers:   cfg.Pipeline.MaxWorkers,
		TaskTimeout:  cfg.Pipeline.TaskTimeout,
		Upload:       cfg.Output.Upload.Enabled,
	}, nil
}

// Result reports what a run produced.
type Result struct {
	RunID      string
	OutputPath string
	Slides     int
	URL        string
	Duration   time.Duration
	// CleanupErr is set when some transient files could not be removed. It
	// never replaces the run's own error.
	CleanupErr error
}

// Converter executes conversion runs. It is safe to reuse across runs.
type Converter struct {
	cfg        *config.Config
	logger     *observability.Logger
	httpClient *http.Client
	publisher  PublisherFactory
	progress   pipeline.ProgressFunc
	onResolved func(total int)
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithHTTPClient sets the client used for remote inputs.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Converter) { c.httpClient = hc }
}

// WithPublisher sets how documents are uploaded when a request asks for it.
func WithPublisher(f PublisherFactory) Option {
	return func(c *Converter) { c.publisher = f }
}

// WithProgress reports transform progress.
func WithProgress(fn pipeline.ProgressFunc) Option {
	return func(c *Converter) { c.progress = fn }
}

// WithResolved is called once the inputs have been expanded, before any
// image is transformed.
func WithResolved(fn func(total int)) Option {
	return func(c *Converter) { c.onResolved = fn }
}

// New creates a converter.
func New(cfg *config.Config, opts ...Option) *Converter {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Converter{
		cfg:    cfg,
		logger: observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Fetch.Timeout}
	}
	return c
}

// Run executes one conversion. The returned Result is never nil; on failure
// no document exists at req.OutputPath.
func (c *Converter) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := c.logger.WithRun(res.RunID)

	if err := validate(req); err != nil {
		return res, err
	}

	runDir, err := os.MkdirTemp(c.cfg.Transform.TempDir, "pptx-builder-"+res.RunID[:8]+"-*")
	if err != nil {
		return res, domain.PersistError("cannot create run directory", err)
	}

	registry := reaper.NewRegistry()
	// Registered first so it is removed last.
	registry.Register(runDir)
	defer func() {
		res.Duration = time.Since(start)
		if cerr := registry.Cleanup(); cerr != nil {
			res.CleanupErr = cerr
			log.Warn().Err(cerr).Msg("Some transient files were not removed")
		}
	}()

	log.Info().
		Int("inputs", len(req.Inputs)).
		Str("canvas", req.Canvas.String()).
		Float64("resize_factor", req.ResizeFactor).
		Int("workers", req.MaxWorkers).
		Msg("Starting conversion")

	resolver, err := source.NewResolver(source.Options{
		TempDir:    runDir,
		Registry:   registry,
		HTTPClient: c.httpClient,
		UserAgent:  c.cfg.Fetch.UserAgent,
		PDFDPI:     c.cfg.PDF.DPI,
		MaxFetches: req.MaxWorkers,
		Logger:     log,
	})
	if err != nil {
		return res, err
	}

	images, err := resolver.Resolve(ctx, req.Inputs)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve inputs")
		return res, err
	}
	if len(images) == 0 {
		return res, domain.ConfigError("inputs contain no images", nil)
	}
	if c.onResolved != nil {
		c.onResolved(len(images))
	}

	stage, err := transform.NewStage(transform.Options{
		Canvas:     req.Canvas,
		TempDir:    runDir,
		DefaultDPI: c.cfg.Transform.DefaultDPI,
		Registry:   registry,
		Logger:     log,
	})
	if err != nil {
		return res, err
	}

	coordinator := pipeline.NewCoordinator(stage,
		pipeline.WithTaskTimeout(req.TaskTimeout),
		pipeline.WithProgress(c.progress),
		pipeline.WithLogger(log),
	)

	results, err := coordinator.RunAll(ctx, images, req.ResizeFactor, req.MaxWorkers)
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		return res, err
	}

	doc, err := pptx.Assemble(results, len(images), req.Canvas)
	if err != nil {
		return res, err
	}

	if err := doc.Save(req.OutputPath); err != nil {
		log.Error().Err(err).Str("path", req.OutputPath).Msg("Failed to save document")
		return res, err
	}
	res.OutputPath = req.OutputPath
	res.Slides = doc.SlideCount()

	log.Info().
		Str("path", req.OutputPath).
		Int("slides", res.Slides).
		Dur("duration", time.Since(start)).
		Msg("Document written")

	if req.Upload {
		url, err := c.publish(ctx, req.OutputPath, res.RunID)
		if err != nil {
			log.Error().Err(err).Msg("Upload failed")
			return res, err
		}
		res.URL = url
		log.Info().Str("url", url).Msg("Document uploaded")
	}

	return res, nil
}

func (c *Converter) publish(ctx context.Context, path, runID string) (string, error) {
	if c.publisher == nil {
		return "", domain.PublishError("upload requested but no publisher is configured", nil)
	}
	p, err := c.publisher(ctx)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, path, runID)
}

func validate(req Request) error {
	if len(req.Inputs) == 0 {
		return domain.ConfigError("at least one input is required", nil)
	}
	if req.OutputPath == "" {
		return domain.ConfigError("output path is required", nil)
	}
	if !req.Canvas.Valid() {
		return domain.InvalidDimensionsError(fmt.Sprintf("invalid canvas %s", req.Canvas), nil)
	}
	if math.IsNaN(req.ResizeFactor) || math.IsInf(req.ResizeFactor, 0) || req.ResizeFactor <= 0 {
		return domain.InvalidScaleError(fmt.Sprintf("resize factor must be > 0, got %v", req.ResizeFactor), nil)
	}
	if req.MaxWorkers < 1 {
		return domain.ConfigError(fmt.Sprintf("max workers must be >= 1, got %d", req.MaxWorkers), nil)
	}
	return nil
}
