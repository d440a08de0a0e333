package internal

// Waker is the wake handle a suspended Observer leaves in a State's waiters.
// Waking only signals; the woken goroutine re-polls the State on its own.
type Waker struct {
	ch chan struct{}
}

func NewWaker() *Waker {
	return &Waker{
		// capacity 1 so a wake delivered while nobody is receiving is kept,
		// and any further wakes collapse into it
		ch: make(chan struct{}, 1),
	}
}

// Wake never blocks, even if nobody will ever receive.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *Waker) C() <-chan struct{} {
	return w.ch
}
