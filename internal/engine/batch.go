package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

// Job is one template render of a batch.
type Job struct {
	Template *schema.Template
	Vars     map[string]any
}

// Result is the outcome of one Job. Output holds whatever was rendered
// before a failure.
type Result struct {
	Template string
	Output   []byte
	Err      error
}

// BatchMetrics tracks batch operational metrics.
type BatchMetrics struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// ErrBatchClosed is returned when a job is submitted to a closed batch.
var ErrBatchClosed = errors.New("render batch is closed")

// Batch renders templates concurrently with bounded parallelism. Every job
// gets its own scope and buffer, so jobs never share mutable state.
type Batch struct {
	driver  *Driver
	sem     chan struct{}
	wg      sync.WaitGroup
	metrics BatchMetrics
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
}

// NewBatch creates a batch running at most size renders at a time.
func (d *Driver) NewBatch(size int) *Batch {
	if size <= 0 {
		size = 1
	}
	return &Batch{
		driver: d,
		sem:    make(chan struct{}, size),
		done:   make(chan struct{}),
	}
}

// Submit schedules job and stores its outcome in *out once done. It blocks
// while the batch is at capacity and respects ctx cancellation while waiting.
func (b *Batch) Submit(ctx context.Context, job Job, out *Result) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatchClosed
	}
	b.mu.Unlock()

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrBatchClosed
	}

	// wg.Add must happen under the lock so Close cannot miss the job.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.sem
		return ErrBatchClosed
	}
	b.wg.Add(1)
	atomic.AddInt64(&b.metrics.Active, 1)
	b.mu.Unlock()

	go func() {
		var buf bytes.Buffer
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&b.metrics.Panics, 1)
				out.Err = schema.NewErrorf(schema.ErrCodeExecution, "render panicked: %v", r)
			}
			out.Output = buf.Bytes()
			if out.Err != nil {
				atomic.AddInt64(&b.metrics.Failed, 1)
			} else {
				atomic.AddInt64(&b.metrics.Completed, 1)
			}
			atomic.AddInt64(&b.metrics.Active, -1)
			<-b.sem
			b.wg.Done()
		}()

		if job.Template != nil {
			out.Template = job.Template.Name
		}
		out.Err = b.driver.Render(ctx, job.Template, scope.New(job.Vars), action.NewTextWriter(&buf))
	}()

	return nil
}

// Wait blocks until all submitted jobs complete.
func (b *Batch) Wait() {
	b.wg.Wait()
}

// Close prevents new submissions and waits for running jobs.
func (b *Batch) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}

// Metrics returns a snapshot of the batch counters.
func (b *Batch) Metrics() BatchMetrics {
	return BatchMetrics{
		Active:    atomic.LoadInt64(&b.metrics.Active),
		Completed: atomic.LoadInt64(&b.metrics.Completed),
		Failed:    atomic.LoadInt64(&b.metrics.Failed),
		Panics:    atomic.LoadInt64(&b.metrics.Panics),
	}
}

// RenderAll renders jobs with at most size concurrent renders and returns
// the results in job order.
func (d *Driver) RenderAll(ctx context.Context, jobs []Job, size int) ([]Result, error) {
	b := d.NewBatch(size)
	defer b.Close()

	results := make([]Result, len(jobs))
	for i := range jobs {
		if err := b.Submit(ctx, jobs[i], &results[i]); err != nil {
			b.Wait()
			return results, fmt.Errorf("submit job %d: %w", i, err)
		}
	}
	b.Wait()
	return results, nil
}
