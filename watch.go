package watch

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/AnatoleLucet/watch/internal"
)

// Closed is the version of a State that will never change again.
const Closed = internal.ClosedVersion

type config struct {
	initial uint64
	logger  *zap.Logger
}

type Option func(*config)

// WithInitialVersion sets the version a new State starts at (1 by default).
// Starting at Closed gives a State that is closed from the beginning.
func WithInitialVersion(version uint64) Option {
	return func(c *config) { c.initial = version }
}

// WithLogger makes the State log its version changes to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

type State struct {
	state *internal.State
}

// NewState creates the shared version that observers wait on and mutators set.
func NewState(opts ...Option) *State {
	c := config{initial: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return &State{
		internal.NewState(c.initial, c.logger.Named("watch.state")),
	}
}

// Version returns the current version.
func (s *State) Version() uint64 { return s.state.Version() }

// SetVersion overwrites the version and wakes every waiting observer.
// Any value is accepted, including lower or equal ones. Setting Closed ends
// all observers; setting a live version after that reopens the State, which
// observers that already saw Closed will not notice.
func (s *State) SetVersion(version uint64) { s.state.SetVersion(version) }

// Bump increments the version and returns the new one.
// It does nothing and returns Closed on a closed State.
func (s *State) Bump() uint64 { return s.state.Bump() }

// Close sets the version to Closed.
func (s *State) Close() { s.state.SetVersion(Closed) }

// Waiting returns the number of wake handles currently registered.
func (s *State) Waiting() int { return s.state.Waiting() }

type Observer struct {
	observer *internal.Observer
}

// NewObserver creates an observer of s that considers version already seen.
// Its first Wait returns as soon as the State holds anything greater.
func NewObserver(s *State, version uint64) *Observer {
	return &Observer{
		s.state.NewObserver(version),
	}
}

// Subscribe creates an observer that waits for the next change of s.
func (s *State) Subscribe() *Observer {
	return &Observer{
		s.state.Subscribe(),
	}
}

// Version returns the last version the observer saw.
func (o *Observer) Version() uint64 { return o.observer.Version() }

// Wait blocks until the State holds a version greater than the one last seen,
// and returns it with true. Versions set in the meantime are skipped over.
// Once the State is closed, Wait returns Closed and false, every time.
//
// An Observer must not be waited on from two goroutines at once.
func (o *Observer) Wait() (uint64, bool) { return o.observer.Wait() }

// WaitContext is like Wait but gives up when ctx is done, returning the last
// version seen, false and ctx.Err().
func (o *Observer) WaitContext(ctx context.Context) (uint64, bool, error) {
	return o.observer.WaitContext(ctx)
}

// Versions yields every version Wait returns until the State closes.
func (o *Observer) Versions() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for {
			version, ok := o.Wait()
			if !ok || !yield(version) {
				return
			}
		}
	}
}
