package scenario

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnatoleLucet/watch"
)

// Result is what one observer saw during a run.
type Result struct {
	Name     string
	Versions []uint64
	Closed   bool
}

// Run plays s: every observer waits on its own goroutine until the State
// closes while the steps are applied from another. Results are in the
// order of s.Observers.
func Run(ctx context.Context, s Scenario, logger *zap.Logger) ([]Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scenario")

	state := watch.NewState(watch.WithInitialVersion(s.Initial), watch.WithLogger(logger))
	results := make([]Result, len(s.Observers))

	// applied[k] is closed once k steps have been set
	applied := make([]chan struct{}, len(s.Steps)+1)
	for k := range applied {
		applied[k] = make(chan struct{})
	}
	close(applied[0])

	var finished atomic.Int64

	g, ctx := errgroup.WithContext(ctx)

	for i, o := range s.Observers {
		observer := watch.NewObserver(state, o.Start)
		log := logger.With(zap.String("observer", o.Name))

		g.Go(func() error {
			defer finished.Add(1)

			select {
			case <-applied[o.After]:
			case <-ctx.Done():
				return fmt.Errorf("observer %s: %w", o.Name, ctx.Err())
			}

			result := Result{Name: o.Name}
			for {
				version, ok, err := observer.WaitContext(ctx)
				if err != nil {
					return fmt.Errorf("observer %s: %w", o.Name, err)
				}
				if !ok {
					log.Debug("closed")
					result.Closed = true
					break
				}

				log.Debug("updated", zap.Uint64("version", version))
				result.Versions = append(result.Versions, version)
			}

			results[i] = result
			return nil
		})
	}

	g.Go(func() error {
		for i, step := range s.Steps {
			if err := sleep(ctx, s.Interval); err != nil {
				return err
			}
			if s.Settle {
				if err := settle(ctx, state, s.started(i), &finished); err != nil {
					return err
				}
			}

			state.SetVersion(step)
			close(applied[i+1])
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// started counts the observers that wait from the given step on.
func (s Scenario) started(step int) int64 {
	var n int64
	for _, o := range s.Observers {
		if o.After <= step {
			n++
		}
	}

	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle waits until every started observer that hasn't finished is
// registered on state.
func settle(ctx context.Context, state *watch.State, started int64, finished *atomic.Int64) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for int64(state.Waiting()) < started-finished.Load() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
