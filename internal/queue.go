package internal

import (
	"github.com/eapache/queue"
)

// WaiterQueue holds the wake handles registered against a State, in
// registration order. Handles are only ever removed all at once.
type WaiterQueue struct {
	wakers *queue.Queue
}

func NewWaiterQueue() *WaiterQueue {
	return &WaiterQueue{
		wakers: queue.New(),
	}
}

// Enqueue appends the waker and returns its 1-based position.
func (q *WaiterQueue) Enqueue(w *Waker) int {
	q.wakers.Add(w)
	return q.wakers.Length()
}

func (q *WaiterQueue) Len() int {
	return q.wakers.Length()
}

// Drain empties the queue and returns what it held.
func (q *WaiterQueue) Drain() []*Waker {
	wakers := make([]*Waker, 0, q.wakers.Length())
	for q.wakers.Length() > 0 {
		wakers = append(wakers, q.wakers.Remove().(*Waker))
	}

	return wakers
}
