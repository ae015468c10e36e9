package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/stackschool/academy/core"
)

// Task is a named unit of outbound, best-effort work (streak updates,
// notifications, grading triggers). Failures are retried then logged;
// they never reach the request that produced them.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher is anything that can take on a Task.
type Dispatcher interface {
	Dispatch(t Task)
}

type (
	// Runner executes dispatched tasks on a single background worker with
	// bounded retries.
	Runner struct {
		logger     core.Logger
		queue      chan Task
		maxRetries int
		backoff    time.Duration
		done       chan struct{}
	}

	RunnerOptions struct {
		QueueSize  int
		MaxRetries int
		Backoff    time.Duration
	}
)

var _ Dispatcher = (*Runner)(nil)

func NewRunner(logger core.Logger, opts ...RunnerOptions) *Runner {
	o := RunnerOptions{QueueSize: 64, MaxRetries: 3, Backoff: 250 * time.Millisecond}
	if len(opts) > 0 {
		if opts[0].QueueSize > 0 {
			o.QueueSize = opts[0].QueueSize
		}
		if opts[0].MaxRetries > 0 {
			o.MaxRetries = opts[0].MaxRetries
		}
		if opts[0].Backoff > 0 {
			o.Backoff = opts[0].Backoff
		}
	}
	return &Runner{
		logger:     logger,
		queue:      make(chan Task, o.QueueSize),
		maxRetries: o.MaxRetries,
		backoff:    o.Backoff,
		done:       make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	go func() {
		defer close(r.done)
		for t := range r.queue {
			r.run(t)
		}
	}()
}

// Dispatch enqueues the task without blocking. A full queue drops the task
// with an error log; best-effort work must never stall a request.
func (r *Runner) Dispatch(t Task) {
	select {
	case r.queue <- t:
	default:
		r.logger.Error(fmt.Sprintf("task queue full, dropping %q", t.Name))
	}
}

// Stop closes the queue and waits for the worker to drain it, up to the
// context deadline.
func (r *Runner) Stop(ctx context.Context) error {
	close(r.queue)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(t Task) {
	var err error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if err = t.Run(context.Background()); err == nil {
			return
		}
		if attempt < r.maxRetries {
			time.Sleep(time.Duration(attempt) * r.backoff)
		}
	}
	r.logger.Error(fmt.Sprintf("task %q failed after %d attempts: %v", t.Name, r.maxRetries, err), err)
}

// Sync runs dispatched tasks inline. Used in tests and CLI tools where
// deterministic execution matters more than latency.
type Sync struct {
	Logger core.Logger
}

var _ Dispatcher = Sync{}

func (s Sync) Dispatch(t Task) {
	if err := t.Run(context.Background()); err != nil {
		s.Logger.Error(fmt.Sprintf("task %q failed: %v", t.Name, err), err)
	}
}
