// Package eventloop provides the single logical thread on which tiles are
// mutated. Work from worker goroutines and store lookups is posted here.
package eventloop

import (
	"context"
	"errors"
	"sync"

	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
)

var ErrStopped = errors.New("eventloop: stopped")

// Loop runs posted functions one at a time, in posting order.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	logger  logger.Logger
}

func New(l logger.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: l,
	}
}

// Post enqueues fn. It never blocks; it returns false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits for it to run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes posted functions until ctx is cancelled. Functions still
// queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("event loop started")
	defer l.stop()

	for {
		batch := l.take()
		for _, fn := range batch {
			l.run(fn)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped")
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending runs everything queued so far, including work posted while
// running, and returns the number of functions executed. It is meant for
// callers that drive the loop themselves instead of calling Run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		batch := l.take()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			l.run(fn)
			n++
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped = true
	l.queue = nil
}
