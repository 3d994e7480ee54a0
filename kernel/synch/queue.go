package synch

// fifo is a first-in first-out queue.
type fifo[T any] struct {
	items []T
}

func (q *fifo[T]) push(v T) { q.items = append(q.items, v) }

func (q *fifo[T]) pop() T {
	var zero T
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v
}

func (q *fifo[T]) len() int { return len(q.items) }
