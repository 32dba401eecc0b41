package sequence

// Queue is a FIFO queue. It is not safe for concurrent use; owners guard it.
type Queue[T any] struct {
	items []T
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, capacity)}
}

// Enqueue appends value at the tail and reports whether it became the head.
func (q *Queue[T]) Enqueue(value T) bool {
	q.items = append(q.items, value)
	return len(q.items) == 1
}

func (q *Queue[T]) Dequeue() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	var zero T
	q.items[0] = zero // avoid memory leak
	q.items = q.items[1:]
	return item, true
}

func (q *Queue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// RemoveFunc drops every element matching pred, keeping the order of the rest.
func (q *Queue[T]) RemoveFunc(pred func(T) bool) int {
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if pred(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept
	return removed
}

// Items returns a copy of the queued elements from head to tail.
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}
