// Package scheduler drives the poller: once on start, on a fixed
// interval, and after a grace delay whenever a mutation was submitted.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"leakdesk/internal/apperr"
)

type Poller interface {
	Poll(ctx context.Context) error
}

// Invalidator is the part of the cache the scheduler needs on shutdown.
type Invalidator interface {
	Invalidate() uint64
}

const DefaultInterval = 60 * time.Second

type Scheduler struct {
	poller   Poller
	cache    Invalidator
	clock    clockwork.Clock
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	ticker  clockwork.Ticker
	timers  map[int]clockwork.Timer
	nextID  int
	wg      sync.WaitGroup
}

func New(p Poller, c Invalidator, clock clockwork.Clock, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		poller:   p,
		cache:    c,
		clock:    clock,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start polls immediately and then on every interval until Stop or until
// parent is cancelled. Calling Start twice is a no-op.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(parent)
	s.timers = map[int]clockwork.Timer{}
	s.ticker = s.clock.NewTicker(s.interval)

	s.wg.Add(1)
	go s.loop(s.ctx, s.ticker)
	s.spawnLocked()
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, t clockwork.Ticker) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			s.spawn()
		}
	}
}

// RefreshAfter schedules one extra poll after d. Each call schedules its
// own poll. It reports false when the scheduler is not running.
func (s *Scheduler) RefreshAfter(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if d <= 0 {
		s.spawnLocked()
		return true
	}
	id := s.nextID
	s.nextID++
	s.timers[id] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.spawn()
	})
	return true
}

// Pending is the number of grace polls not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels the ticker and every pending grace poll, detaches the
// cache from polls still in flight and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.ticker.Stop()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cache.Invalidate()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) spawn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.spawnLocked()
	}
}

// spawnLocked starts one poll goroutine. Caller holds mu.
func (s *Scheduler) spawnLocked() {
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.poller.Poll(ctx)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrStaleEpoch), errors.Is(err, context.Canceled):
			s.log.Debug().Err(err).Msg("poll abandoned")
		default:
			s.log.Warn().Err(err).Msg("poll failed")
		}
	}()
}
