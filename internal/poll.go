package internal

// Poll is the outcome of evaluating an Observer against its State once.
type Poll int

const (
	PollPending Poll = iota
	PollUpdated
	PollClosed
)

func (p Poll) String() string {
	switch p {
	case PollPending:
		return "pending"
	case PollUpdated:
		return "updated"
	case PollClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Token identifies an Observer's entry in a State's waiters.
// The zero Token means the Observer is not registered.
type Token struct {
	generation uint64
	index      int // 1-based
}

func (t Token) Valid() bool {
	return t.index > 0
}
