package tasks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/stackschool/academy/core/tasks"
)

// testLogger records Error calls; the other levels are discarded.
type testLogger struct {
	mu     sync.Mutex
	errMsg []string
}

func (l *testLogger) Debug(msg string, args ...interface{}) {}
func (l *testLogger) Info(msg string, args ...interface{})  {}
func (l *testLogger) Warn(msg string, args ...interface{})  {}
func (l *testLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errMsg = append(l.errMsg, msg)
}
func (l *testLogger) Fatal(msg string, args ...interface{}) {}

func (l *testLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errMsg...)
}

func TestRunner_retriesThenSucceeds(t *testing.T) {
	logger := new(testLogger)
	r := tasks.NewRunner(logger, tasks.RunnerOptions{Backoff: time.Millisecond})
	r.Start()

	var calls int32
	r.Dispatch(tasks.Task{
		Name: "flaky",
		Run: func(context.Context) error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return errors.New("boom")
			}
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Empty(t, logger.errors(), "a task that eventually succeeds must not be logged as failed")
}

func TestRunner_logsAfterExhaustedRetries(t *testing.T) {
	logger := new(testLogger)
	r := tasks.NewRunner(logger, tasks.RunnerOptions{MaxRetries: 2, Backoff: time.Millisecond})
	r.Start()

	var calls int32
	r.Dispatch(tasks.Task{
		Name: "doomed",
		Run: func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	errs := logger.errors()
	if assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0], `task "doomed" failed after 2 attempts`)
	}
}

func TestRunner_fullQueueDropsWithoutBlocking(t *testing.T) {
	logger := new(testLogger)
	// worker not started, so the queue never drains
	r := tasks.NewRunner(logger, tasks.RunnerOptions{QueueSize: 1})

	noop := func(context.Context) error { return nil }
	r.Dispatch(tasks.Task{Name: "first", Run: noop})

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Dispatch(tasks.Task{Name: "second", Run: noop})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch() blocked on a full queue")
	}

	errs := logger.errors()
	if assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0], `task queue full, dropping "second"`)
	}
}

func TestRunner_stopDrainsPending(t *testing.T) {
	logger := new(testLogger)
	r := tasks.NewRunner(logger)
	r.Start()

	var calls int32
	for i := 0; i < 10; i++ {
		r.Dispatch(tasks.Task{
			Name: "work",
			Run: func(context.Context) error {
				atomic.AddInt32(&calls, 1)
				return nil
			},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	assert.Equal(t, int32(10), atomic.LoadInt32(&calls))
}

func TestSync_runsInline(t *testing.T) {
	logger := new(testLogger)
	s := tasks.Sync{Logger: logger}

	var ran bool
	s.Dispatch(tasks.Task{Name: "inline", Run: func(context.Context) error {
		ran = true
		return nil
	}})
	assert.True(t, ran)

	s.Dispatch(tasks.Task{Name: "bad", Run: func(context.Context) error {
		return errors.New("boom")
	}})
	errs := logger.errors()
	if assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0], `task "bad" failed: boom`)
	}
}
