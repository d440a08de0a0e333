package internal

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// ClosedVersion is the version a State holds once no more updates will come.
const ClosedVersion uint64 = 0

type State struct {
	mu sync.Mutex

	version uint64
	waiters *WaiterQueue

	// incremented each time waiters is drained
	// a Token from an older generation no longer points into waiters
	generation uint64

	logger *zap.Logger
}

func NewState(initial uint64, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &State{
		version: initial,
		waiters: NewWaiterQueue(),
		logger:  logger,
	}
}

func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// Waiting reports how many wake handles are currently registered.
// Handles left behind by abandoned waits are counted until the next change.
func (s *State) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waiters.Len()
}

// SetVersion overwrites the version, whatever it was, and wakes every waiter.
func (s *State) SetVersion(version uint64) {
	s.mu.Lock()
	previous := s.version
	wakers := s.storeLocked(version)
	s.mu.Unlock()

	// wake outside the lock, a woken observer polls again right away
	for _, w := range wakers {
		w.Wake()
	}

	s.logChange(previous, version, len(wakers))
}

// Bump advances a live version by one. It returns the new version, or
// ClosedVersion without touching anything if the State is closed.
func (s *State) Bump() uint64 {
	s.mu.Lock()
	previous := s.version
	if previous == ClosedVersion {
		s.mu.Unlock()
		return ClosedVersion
	}

	next := previous + 1
	if previous == math.MaxUint64 {
		// never wrap into the closed sentinel
		next = previous
		s.logger.Warn("version saturated", zap.Uint64("version", previous))
	}

	wakers := s.storeLocked(next)
	s.mu.Unlock()

	for _, w := range wakers {
		w.Wake()
	}

	s.logChange(previous, next, len(wakers))
	return next
}

func (s *State) storeLocked(version uint64) []*Waker {
	s.version = version
	s.generation++

	return s.waiters.Drain()
}

func (s *State) logChange(previous, version uint64, woken int) {
	if previous == ClosedVersion && version != ClosedVersion {
		s.logger.Warn("closed state reopened", zap.Uint64("version", version))
	}

	s.logger.Debug("version set",
		zap.Uint64("previous", previous),
		zap.Uint64("version", version),
		zap.Int("woken", woken),
	)
}

// PollUpdate evaluates an observer that last saw observed.
//
// Closed wins over everything. A strictly greater version is an update and
// the observer jumps straight to it, skipping whatever came in between.
// Anything else, equality included, is pending: the waker is registered
// unless token shows it already is for the current generation.
func (s *State) PollUpdate(observed uint64, token Token, waker *Waker) (Poll, uint64, Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == ClosedVersion {
		return PollClosed, observed, Token{}
	}

	if observed < s.version {
		return PollUpdated, s.version, Token{}
	}

	if token.Valid() && token.generation == s.generation {
		return PollPending, observed, token
	}

	index := s.waiters.Enqueue(waker)
	return PollPending, observed, Token{generation: s.generation, index: index}
}
