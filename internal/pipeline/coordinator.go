// Package pipeline runs the transform stage across all input images with a
// bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/observability"
)

// ProgressFunc is called after each task reaches a terminal state.
// Calls are serialized.
type ProgressFunc func(done, total int)

// Coordinator fans transform tasks out to a bounded set of workers and
// collects their results by input index.
type Coordinator struct {
	stage       domain.Transformer
	taskTimeout time.Duration
	progress    ProgressFunc
	logger      *observability.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTaskTimeout bounds each task. The deadline only applies before a task
// creates its artifact.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.taskTimeout = d }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Coordinator) { c.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator around a transform stage.
func NewCoordinator(stage domain.Transformer, opts ...Option) *Coordinator {
	c := &Coordinator{
		stage:  stage,
		logger: observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("pipeline")
	return c
}

// RunAll transforms every image with at most maxWorkers tasks in flight and
// returns the results keyed by SourceImage.Index.
//
// On the first failure no further tasks are admitted; tasks already admitted
// are left to finish so that every artifact they create is registered, and
// the first error is returned once all of them are done. The returned map
// holds every successful result, including partial results on failure.
func (c *Coordinator) RunAll(ctx context.Context, images []domain.SourceImage, resizeFactor float64, maxWorkers int) (map[int]domain.SlideResult, error) {
	if maxWorkers < 1 {
		return nil, domain.ConfigError(fmt.Sprintf("max workers must be >= 1, got %d", maxWorkers), nil)
	}

	results := make(map[int]domain.SlideResult, len(images))
	if len(images) == 0 {
		return results, nil
	}

	var (
		mu     sync.Mutex
		done   int
		failed bool
	)

	// A slot is taken in the submit loop, so every task handed to the group
	// was admitted before any failure was seen and always runs. The slot is
	// released only after a failure is recorded.
	sem := semaphore.NewWeighted(int64(maxWorkers))
	g, gctx := errgroup.WithContext(ctx)

	start := time.Now()
	started := 0

	for _, img := range images {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		mu.Lock()
		stop := failed
		mu.Unlock()
		if stop || gctx.Err() != nil {
			sem.Release(1)
			break
		}
		started++

		img := img
		g.Go(func() error {
			defer sem.Release(1)

			// Tasks run on the caller's context, not gctx, so a sibling's
			// failure never interrupts them.
			taskCtx := ctx
			if c.taskTimeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, c.taskTimeout)
				defer cancel()
			}

			res, err := c.stage.Transform(taskCtx, img, resizeFactor)

			mu.Lock()
			defer mu.Unlock()
			done++
			if c.progress != nil {
				c.progress(done, len(images))
			}

			if err != nil {
				failed = true
				c.logger.Error().Err(err).Int("index", img.Index).Str("path", img.Path).Msg("Transform failed")
				return fmt.Errorf("image %d (%s): %w", img.Index, img.Path, err)
			}
			results[res.Index] = res
			return nil
		})
	}

	err := g.Wait()
	if err == nil && len(results) < len(images) {
		// Submission stopped because the caller gave up.
		err = ctx.Err()
	}

	c.logger.Info().
		Int("total", len(images)).
		Int("started", started).
		Int("succeeded", len(results)).
		Dur("took", time.Since(start)).
		Msg("Pipeline finished")

	return results, err
}
