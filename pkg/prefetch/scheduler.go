// Package prefetch loads the image payloads around the current position of a
// timeline in the background.
package prefetch

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/class1/graduate/pkg/timeline"
)

const (
	// Lookback is how many events before the current one are kept warm.
	Lookback = 1
	// Lookahead is how many events from the current one on are kept warm.
	Lookahead = 5
)

// Resolver turns a logical asset path into bytes.
type Resolver interface {
	Resolve(ctx context.Context, logicalPath string) ([]byte, error)
}

// Logger abstracts logging so callers can use logrus or anything else with
// the same methods.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Window returns the half-open event range [lo, hi) to keep loaded around
// onEvent in a timeline of n events.
func Window(onEvent, n int) (lo, hi int) {
	lo = onEvent - Lookback
	if lo < 0 {
		lo = 0
	}
	hi = onEvent + Lookahead
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Config holds everything a Scheduler needs.
type Config struct {
	Timeline    *timeline.Timeline
	Resolver    Resolver
	Concurrency int    // max simultaneous resolves, 0 = unbounded
	Log         Logger // optional

	// OnLoaded is called from the loading goroutine after each load finishes.
	OnLoaded func(event, experience int, err error)
}

// Scheduler launches deduplicated background loads for the experiences of a
// timeline. Each load writes only into its own experience. Experiences that
// share a path share one resolve.
type Scheduler struct {
	tl       *timeline.Timeline
	res      Resolver
	sem      *semaphore.Weighted
	flight   singleflight.Group
	log      Logger
	onLoaded func(event, experience int, err error)

	wg sync.WaitGroup
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Timeline == nil {
		return nil, errors.New("prefetch: nil timeline")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("prefetch: nil resolver")
	}
	s := &Scheduler{
		tl:       cfg.Timeline,
		res:      cfg.Resolver,
		log:      cfg.Log,
		onLoaded: cfg.OnLoaded,
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	if cfg.Concurrency > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.Concurrency))
	}
	return s, nil
}

// Schedule starts a load for every unloaded experience in the window around
// onEvent and returns how many were started. It never blocks on a load.
func (s *Scheduler) Schedule(ctx context.Context, onEvent int) int {
	lo, hi := Window(onEvent, s.tl.Len())
	launched := 0
	for i := lo; i < hi; i++ {
		ev, err := s.tl.Event(i)
		if err != nil {
			continue
		}
		for j, x := range ev.Experiences {
			if !x.Claim() {
				continue
			}
			launched++
			s.wg.Add(1)
			go func(i, j int, x *timeline.Experience) {
				defer s.wg.Done()
				s.load(ctx, i, j, x)
			}(i, j, x)
		}
	}
	if launched > 0 {
		s.log.Debugf("Scheduled %d loads around event %d [%d, %d)", launched, onEvent, lo, hi)
	}
	return launched
}

// Await returns the payload of one experience, loading it in the calling
// goroutine if nobody else is, or waiting for the outstanding load.
func (s *Scheduler) Await(ctx context.Context, event, experience int) ([]byte, error) {
	x, err := s.tl.Slot(event, experience)
	if err != nil {
		return nil, err
	}
	for {
		if p, ok := x.Payload(); ok {
			return p, nil
		}
		if x.Claim() {
			return s.load(ctx, event, experience, x)
		}
		// a failed load leaves the slot Unloaded, so the next pass claims it
		done := x.Done()
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Wait blocks until every load started by Schedule has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// load runs one claimed load to completion.
func (s *Scheduler) load(ctx context.Context, event, experience int, x *timeline.Experience) ([]byte, error) {
	payload, err := s.resolve(ctx, x.Path)
	x.Complete(payload, err)
	if err != nil {
		s.log.Warnf("Could not load %s (event %d, photo %d): %v", x.Path, event, experience, err)
	} else {
		s.log.Debugf("Loaded %s (%d bytes)", x.Path, len(payload))
	}
	if s.onLoaded != nil {
		s.onLoaded(event, experience, err)
	}
	return payload, err
}

func (s *Scheduler) resolve(ctx context.Context, path string) ([]byte, error) {
	v, err, shared := s.flight.Do(path, func() (interface{}, error) {
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer s.sem.Release(1)
		}
		return s.res.Resolve(ctx, path)
	})
	if shared {
		s.log.Debugf("Shared the load of %s", path)
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
