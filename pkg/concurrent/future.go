package concurrent

import (
	"context"
	"fmt"
)

// Future is the completion handle of work running elsewhere. Done can be polled from a
// frame loop; Wait blocks.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns an already completed Future.
func Resolved[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(value, err)
	return f
}

// Go runs fn on a new goroutine.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go f.run(fn)
	return f
}

func (f *Future[T]) run(fn func() (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			f.resolve(zero, fmt.Errorf("concurrent: job panicked: %v", r))
		}
	}()
	value, err := fn()
	f.resolve(value, err)
}

func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done reports whether the work has completed without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the work completes.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// WaitContext blocks until the work completes or ctx is done.
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) C() <-chan struct{} {
	return f.done
}
