package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/observability"
)

// fakeStage records calls and delegates behaviour to fn.
type fakeStage struct {
	mu       sync.Mutex
	calls    []int
	inFlight int32
	maxSeen  int32
	fn       func(ctx context.Context, img domain.SourceImage) (domain.SlideResult, error)
}

func (f *fakeStage) Transform(ctx context.Context, img domain.SourceImage, _ float64) (domain.SlideResult, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxSeen, m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, img.Index)
	f.mu.Unlock()

	return f.fn(ctx, img)
}

func (f *fakeStage) called(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == index {
			return true
		}
	}
	return false
}

func ok(img domain.SourceImage) domain.SlideResult {
	return domain.SlideResult{Index: img.Index, Artifact: fmt.Sprintf("/tmp/slide-%d.png", img.Index)}
}

func makeImages(n int) []domain.SourceImage {
	images := make([]domain.SourceImage, n)
	for i := range images {
		images[i] = domain.SourceImage{Index: i + 1, Path: fmt.Sprintf("img-%d.png", i+1)}
	}
	return images
}

func TestCoordinator_RunAll_KeysByIndexNotCompletionOrder(t *testing.T) {
	const n = 8
	stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		// Later images finish first.
		time.Sleep(time.Duration(n-img.Index) * 3 * time.Millisecond)
		return ok(img), nil
	}}

	results, err := NewCoordinator(stage).RunAll(context.Background(), makeImages(n), 1.0, n)
	require.NoError(t, err)
	require.Len(t, results, n)
	for i := 1; i <= n; i++ {
		assert.Equal(t, i, results[i].Index)
		assert.Equal(t, fmt.Sprintf("/tmp/slide-%d.png", i), results[i].Artifact)
	}
}

func TestCoordinator_RunAll_BoundsConcurrency(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
				time.Sleep(5 * time.Millisecond)
				return ok(img), nil
			}}

			results, err := NewCoordinator(stage).RunAll(context.Background(), makeImages(12), 1.0, workers)
			require.NoError(t, err)
			assert.Len(t, results, 12)
			assert.LessOrEqual(t, int(atomic.LoadInt32(&stage.maxSeen)), workers)
			assert.GreaterOrEqual(t, int(atomic.LoadInt32(&stage.maxSeen)), 1)
		})
	}
}

func TestCoordinator_RunAll_StopsSubmittingAfterFailure(t *testing.T) {
	decodeErr := domain.DecodeError("cannot open image img-2.png", errors.New("no such file"))
	stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		if img.Index == 2 {
			return domain.SlideResult{}, decodeErr
		}
		return ok(img), nil
	}}

	results, err := NewCoordinator(stage).RunAll(context.Background(), makeImages(5), 1.0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, decodeErr)
	assert.Equal(t, domain.ErrorKindDecode, domain.KindOf(err))

	assert.Equal(t, []int{1, 2}, stage.calls)
	assert.Contains(t, results, 1)
	assert.NotContains(t, results, 2)
}

func TestCoordinator_RunAll_AwaitsInFlightTasks(t *testing.T) {
	for i := 0; i < 20; i++ {
		var entered sync.WaitGroup
		entered.Add(2)
		failed := make(chan struct{})
		var finished int32

		stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
			switch img.Index {
			case 1:
				// Fail only once both siblings are inside Transform.
				entered.Wait()
				close(failed)
				return domain.SlideResult{}, domain.PersistError("disk full", nil)
			case 2, 3:
				entered.Done()
				<-failed
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&finished, 1)
				return ok(img), nil
			}
			return ok(img), nil
		}}

		results, err := NewCoordinator(stage).RunAll(context.Background(), makeImages(6), 1.0, 3)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorKindPersist, domain.KindOf(err))

		// Both in-flight tasks ran to completion before RunAll returned and
		// their results are reported so their artifacts can be reaped.
		assert.Equal(t, int32(2), atomic.LoadInt32(&finished))
		assert.Contains(t, results, 2)
		assert.Contains(t, results, 3)

		for _, idx := range []int{4, 5, 6} {
			assert.False(t, stage.called(idx), "image %d must not start after a failure", idx)
		}
	}
}

func TestCoordinator_RunAll_AdmittedTasksAlwaysRun(t *testing.T) {
	// Task 1 fails immediately while the others may still be waiting to be
	// scheduled. Every task handed to a worker must still reach Transform.
	for i := 0; i < 50; i++ {
		stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
			if img.Index == 1 {
				return domain.SlideResult{}, domain.DecodeError("broken", nil)
			}
			return ok(img), nil
		}}

		var buf bytes.Buffer
		logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})

		results, err := NewCoordinator(stage, WithLogger(logger)).RunAll(context.Background(), makeImages(3), 1.0, 3)
		require.Error(t, err)

		var summary struct {
			Message   string `json:"message"`
			Started   int    `json:"started"`
			Succeeded int    `json:"succeeded"`
		}
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.NoError(t, json.Unmarshal(lines[len(lines)-1], &summary))
		require.Equal(t, "Pipeline finished", summary.Message)

		stage.mu.Lock()
		calls := len(stage.calls)
		stage.mu.Unlock()
		assert.Equal(t, summary.Started, calls, "admitted tasks that never ran")
		assert.Equal(t, calls-1, len(results))
	}
}

func TestCoordinator_RunAll_ReturnsFirstError(t *testing.T) {
	stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		if img.Index == 1 {
			return domain.SlideResult{}, domain.DecodeError("first", nil)
		}
		time.Sleep(30 * time.Millisecond)
		return domain.SlideResult{}, domain.PersistError("second", nil)
	}}

	_, err := NewCoordinator(stage).RunAll(context.Background(), makeImages(2), 1.0, 2)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindDecode, domain.KindOf(err))
}

func TestCoordinator_RunAll_InvalidWorkers(t *testing.T) {
	stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		return ok(img), nil
	}}

	_, err := NewCoordinator(stage).RunAll(context.Background(), makeImages(2), 1.0, 0)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindInvalidConfig, domain.KindOf(err))
	assert.Empty(t, stage.calls)
}

func TestCoordinator_RunAll_Empty(t *testing.T) {
	results, err := NewCoordinator(&fakeStage{}).RunAll(context.Background(), nil, 1.0, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCoordinator_RunAll_CallerCancelled(t *testing.T) {
	stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		return ok(img), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCoordinator(stage).RunAll(ctx, makeImages(3), 1.0, 2)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stage.calls)
}

func TestCoordinator_RunAll_TaskTimeout(t *testing.T) {
	stage := &fakeStage{fn: func(ctx context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		<-ctx.Done()
		return domain.SlideResult{}, ctx.Err()
	}}

	_, err := NewCoordinator(stage, WithTaskTimeout(10*time.Millisecond)).
		RunAll(context.Background(), makeImages(1), 1.0, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_RunAll_Progress(t *testing.T) {
	stage := &fakeStage{fn: func(_ context.Context, img domain.SourceImage) (domain.SlideResult, error) {
		return ok(img), nil
	}}

	var seen []int
	progress := func(done, total int) {
		assert.Equal(t, 4, total)
		seen = append(seen, done)
	}

	_, err := NewCoordinator(stage, WithProgress(progress)).RunAll(context.Background(), makeImages(4), 1.0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}
