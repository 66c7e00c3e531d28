// Package timer provides the per-auction countdown service. Each auction has
// at most one countdown; entries are created on Start and removed on stop or
// completion. The service is dependency-injected (no globals) and takes a
// clockwork.Clock so countdowns are driven by a fake clock in tests.
package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the countdown timer registry. All operations are no-ops on an
// unknown auction id and independent across auction ids.
type Service struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[uuid.UUID]*countdown
}

// countdown is one auction's timer state. cancel belongs to the currently
// running tick goroutine; it is replaced on every resume.
type countdown struct {
	remaining  int
	running    bool
	completed  bool
	onComplete func()
	cancel     chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects a clock, typically clockwork.NewFakeClock in tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a countdown timer service backed by the real clock
// unless WithClock overrides it.
func NewService(opts ...Option) *Service {
	s := &Service{
		clock:  clockwork.NewRealClock(),
		timers: make(map[uuid.UUID]*countdown),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a countdown of the given seconds for the auction, replacing
// any existing countdown for the same id. onComplete is invoked exactly once
// when the countdown reaches zero, after which the entry is removed. A
// non-positive seconds completes immediately.
func (s *Service) Start(auctionID uuid.UUID, seconds int, onComplete func()) {
	if seconds <= 0 {
		if onComplete != nil {
			onComplete()
		}
		return
	}

	s.mu.Lock()
	if old, ok := s.timers[auctionID]; ok {
		old.halt()
		log.Debug().Str("auction_id", auctionID.String()).Msg("replaced existing countdown")
	}
	c := &countdown{
		remaining:  seconds,
		running:    true,
		onComplete: onComplete,
		cancel:     make(chan struct{}),
	}
	s.timers[auctionID] = c
	cancel := c.cancel
	s.mu.Unlock()

	go s.run(auctionID, c, cancel)

	log.Debug().
		Str("auction_id", auctionID.String()).
		Int("seconds", seconds).
		Msg("countdown started")
}

// Stop cancels the auction's countdown if one exists. Idempotent; the
// completion callback does not fire.
func (s *Service) Stop(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.timers[auctionID]
	if !ok {
		return
	}
	c.halt()
	delete(s.timers, auctionID)
	log.Debug().Str("auction_id", auctionID.String()).Msg("countdown stopped")
}

// Reset rewrites the remaining seconds of an existing countdown. It never
// creates a countdown and does not change the paused/running state.
func (s *Service) Reset(auctionID uuid.UUID, seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.timers[auctionID]
	if !ok || seconds <= 0 {
		return
	}
	c.remaining = seconds
}

// Pause halts ticking while preserving the remaining seconds. Idempotent.
func (s *Service) Pause(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.timers[auctionID]
	if !ok || !c.running {
		return
	}
	c.halt()
	log.Debug().
		Str("auction_id", auctionID.String()).
		Int("remaining", c.remaining).
		Msg("countdown paused")
}

// Resume continues a paused countdown from its preserved seconds. Calling it
// on a running countdown is a no-op, so the completion callback can never
// double-fire.
func (s *Service) Resume(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.timers[auctionID]
	if !ok || c.running || c.completed {
		return
	}
	c.running = true
	c.cancel = make(chan struct{})
	go s.run(auctionID, c, c.cancel)

	log.Debug().
		Str("auction_id", auctionID.String()).
		Int("remaining", c.remaining).
		Msg("countdown resumed")
}

// Value returns the remaining seconds of the auction's countdown, or 0 if
// none exists.
func (s *Service) Value(auctionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.timers[auctionID]
	if !ok {
		return 0
	}
	return c.remaining
}

// StopAll cancels every countdown, used on shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.timers {
		c.halt()
		delete(s.timers, id)
	}
}

// run drives one second of ticking per clock tick until cancelled or the
// countdown reaches zero. Tick handling is cheap and non-blocking; the
// completion callback runs outside the service lock.
func (s *Service) run(auctionID uuid.UUID, c *countdown, cancel chan struct{}) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.Chan():
			if done := s.tick(auctionID, c); done {
				return
			}
		}
	}
}

// tick decrements the countdown and reports whether the run loop should
// exit. On reaching zero it removes the entry and fires the completion
// callback exactly once.
func (s *Service) tick(auctionID uuid.UUID, c *countdown) bool {
	s.mu.Lock()
	// A pause or replacement may have raced this tick; drop it.
	if s.timers[auctionID] != c || !c.running || c.completed {
		s.mu.Unlock()
		return true
	}
	c.remaining--
	if c.remaining > 0 {
		s.mu.Unlock()
		return false
	}
	c.remaining = 0
	c.completed = true
	c.running = false
	delete(s.timers, auctionID)
	onComplete := c.onComplete
	s.mu.Unlock()

	log.Debug().Str("auction_id", auctionID.String()).Msg("countdown completed")
	if onComplete != nil {
		onComplete()
	}
	return true
}

// halt signals the current run goroutine to exit. Callers hold the service
// lock.
func (c *countdown) halt() {
	if c.running {
		c.running = false
		close(c.cancel)
	}
}
