package internal

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

type Observer struct {
	state *State
	waker *Waker

	observed atomic.Uint64
	token    Token

	// id of the goroutine currently inside Wait, 0 when idle
	holder atomic.Int64

	logger *zap.Logger
}

func (s *State) NewObserver(version uint64) *Observer {
	o := &Observer{
		state:  s,
		waker:  NewWaker(),
		logger: s.logger,
	}
	o.observed.Store(version)

	return o
}

// Subscribe returns an observer that only wakes for versions after the current one.
func (s *State) Subscribe() *Observer {
	return s.NewObserver(s.Version())
}

func (o *Observer) Version() uint64 {
	return o.observed.Load()
}

// Wait blocks until the State moves past the observed version or closes.
// It returns the new version and true, or ClosedVersion and false once closed.
func (o *Observer) Wait() (uint64, bool) {
	v, ok, _ := o.wait(context.Background())
	return v, ok
}

// WaitContext is Wait raced against ctx. On cancellation it returns the
// last observed version, false and ctx.Err().
func (o *Observer) WaitContext(ctx context.Context) (uint64, bool, error) {
	return o.wait(ctx)
}

func (o *Observer) wait(ctx context.Context) (uint64, bool, error) {
	release := o.acquire()
	defer release()

	for {
		switch o.poll() {
		case PollUpdated:
			return o.observed.Load(), true, nil
		case PollClosed:
			return ClosedVersion, false, nil
		}

		select {
		case <-o.waker.C():
		case <-ctx.Done():
			// the registration stays queued, the next change drops it
			return o.observed.Load(), false, ctx.Err()
		}
	}
}

func (o *Observer) poll() Poll {
	result, observed, token := o.state.PollUpdate(o.observed.Load(), o.token, o.waker)

	if result == PollPending && token != o.token {
		o.logger.Debug("observer registered", zap.Uint64("observed", observed))
	}

	o.observed.Store(observed)
	o.token = token

	return result
}

// acquire marks the calling goroutine as the one waiting. An Observer has a
// single consumer, two goroutines waiting on it at once is a bug in the caller.
func (o *Observer) acquire() func() {
	gid := goroutineID()
	if !o.holder.CompareAndSwap(0, gid) {
		panic(fmt.Sprintf("watch: concurrent wait on observer (held by goroutine %d, called from %d)", o.holder.Load(), gid))
	}

	return func() { o.holder.Store(0) }
}
