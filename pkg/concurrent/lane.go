package concurrent

import (
	"errors"
	"sync"
)

var ErrLaneClosed = errors.New("concurrent: lane is closed")

// Lane is a single background execution pipe. Jobs run one at a time in submission order.
type Lane struct {
	mu     sync.Mutex
	jobs   chan func()
	closed bool
	wg     sync.WaitGroup
}

func NewLane(buffer int) *Lane {
	if buffer < 1 {
		buffer = 1
	}
	l := &Lane{jobs: make(chan func(), buffer)}
	l.wg.Add(1)
	go l.loop()
	return l
}

func (l *Lane) loop() {
	defer l.wg.Done()
	for job := range l.jobs {
		job()
	}
}

// Submit queues fn on the lane. A closed lane resolves the Future with ErrLaneClosed.
func Submit[T any](l *Lane, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		var zero T
		f.resolve(zero, ErrLaneClosed)
		return f
	}
	l.jobs <- func() { f.run(fn) }
	return f
}

// Close stops accepting jobs and waits for the queued ones to drain.
func (l *Lane) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.jobs)
	}
	l.mu.Unlock()
	l.wg.Wait()
}
