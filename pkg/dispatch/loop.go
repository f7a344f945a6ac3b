// Package dispatch runs callbacks on one dedicated goroutine so that
// presentation state is only ever touched from a single place, while slow
// work runs elsewhere.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Run after Stop was called.
var ErrStopped = errors.New("dispatch: loop stopped")

// Loop is a single-consumer queue of functions.
type Loop struct {
	queue chan func()
	quit  chan struct{}
	once  sync.Once
}

// New returns a loop whose queue holds up to size pending functions.
func New(size int) *Loop {
	if size <= 0 {
		size = 16
	}
	return &Loop{
		queue: make(chan func(), size),
		quit:  make(chan struct{}),
	}
}

// Post queues fn for the loop goroutine. It blocks while the queue is full and
// returns false once the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Run executes queued functions on the calling goroutine until ctx is done or
// Stop is called. A panicking function is logged and does not end the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return ErrStopped
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

// Stop makes Run return and rejects further posts.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.quit) })
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch: recovered panic", "panic", r)
		}
	}()
	fn()
}

// Go runs work on its own goroutine and hands the outcome to done on the loop
// goroutine. If the loop is already stopped, done is never called.
func Go[T any](ctx context.Context, loop *Loop, work func(context.Context) (T, error), done func(T, error)) {
	go func() {
		v, err := work(ctx)
		if !loop.Post(func() { done(v, err) }) {
			slog.Debug("dispatch: result dropped, loop stopped", "error", err)
		}
	}()
}
