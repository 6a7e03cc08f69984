// Package detached runs fire-and-forget work off the request path.
// This is part of the platform layer and contains no business logic.
package detached

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/metrics"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("detached runner closed")

// ErrSaturated is returned by Submit when the queue is full.
var ErrSaturated = errors.New("detached runner saturated")

// Task is a unit of detached work.
type Task = func(ctx context.Context) error

type job struct {
	name string
	ctx  context.Context
	fn   Task
}

// Runner is a bounded worker pool. Submit never blocks the caller; task
// errors and panics are logged and never propagate.
type Runner struct {
	queue   chan job
	timeout time.Duration
	log     *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Options configures a Runner.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// New starts a runner with the given number of workers.
func New(opts Options, log *logger.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = opts.Workers * 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	r := &Runner{
		queue:   make(chan job, opts.QueueSize),
		timeout: opts.Timeout,
		log:     log,
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Submit enqueues fn. The task context keeps ctx values (request id) but
// not its cancellation.
func (r *Runner) Submit(ctx context.Context, name string, fn Task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	select {
	case r.queue <- job{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
		return nil
	default:
		metrics.RecordDetachedDropped()
		r.log.WithContext(ctx).Warn("detached task dropped", "task", name)
		return ErrSaturated
	}
}

// Shutdown stops accepting work and waits for queued tasks to drain.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, r.timeout)
	defer cancel()

	err := safeCall(ctx, j.fn)
	if err != nil {
		r.log.WithContext(ctx).Error("detached task failed", "task", j.name, "error", err)
	}
}

func safeCall(ctx context.Context, fn Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}
