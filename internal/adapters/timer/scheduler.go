// Package timer schedules the per-turn deadline callback for each
// entity. Exactly one deadline is live per entity; opening a new turn
// replaces the previous one and terminal transitions cancel it. The
// fired callback carries the turn epoch so the engine can no-op a
// deadline that lost its race against a submit.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/okian/medley/pkg/logger"
	"github.com/okian/medley/pkg/metrics"
)

// FireFunc receives the entity and turn epoch a deadline was armed for.
type FireFunc func(ctx context.Context, entityID string, epoch uint64)

// CancelFunc stops a pending timer; it reports whether the timer was
// still pending.
type CancelFunc func() bool

// AfterFunc arms a callback after d. Tests inject a manual
// implementation so no real time passes.
type AfterFunc func(d time.Duration, fire func()) CancelFunc

type handle struct {
	epoch  uint64
	cancel CancelFunc
}

// Scheduler owns one pending deadline per entity id.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*handle

	after  AfterFunc
	fire   FireFunc
	logger logger.Logger
}

// NewScheduler creates a scheduler delivering deadlines to fire.
func NewScheduler(fire FireFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		pending: make(map[string]*handle),
		fire:    fire,
		logger:  logger.Get().Named("timer"),
	}
	s.after = func(d time.Duration, f func()) CancelFunc {
		t := time.AfterFunc(d, f)
		return t.Stop
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Schedule arms the deadline for an entity's turn, replacing any
// previous one. The epoch travels with the callback; the engine decides
// whether the turn it targets is still open.
func (s *Scheduler) Schedule(ctx context.Context, entityID string, epoch uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[entityID]; ok {
		prev.cancel()
	}

	h := &handle{epoch: epoch}
	h.cancel = s.after(d, func() {
		s.expire(entityID, h)
	})
	s.pending[entityID] = h
	metrics.UpdatePendingTimers(len(s.pending))
}

// Cancel drops the pending deadline for an entity, if any.
func (s *Scheduler) Cancel(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.pending[entityID]; ok {
		h.cancel()
		delete(s.pending, entityID)
		metrics.UpdatePendingTimers(len(s.pending))
	}
}

// Stop cancels every pending deadline.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.pending {
		h.cancel()
		delete(s.pending, id)
	}
	metrics.UpdatePendingTimers(0)
}

// Pending reports how many deadlines are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// expire removes the handle if it is still the live one, then delivers
// the fire callback. A handle replaced by a newer Schedule no-ops here;
// a raced fire that slips past still carries a stale epoch the engine
// rejects.
func (s *Scheduler) expire(entityID string, h *handle) {
	s.mu.Lock()
	if current, ok := s.pending[entityID]; !ok || current != h {
		s.mu.Unlock()
		return
	}
	delete(s.pending, entityID)
	metrics.UpdatePendingTimers(len(s.pending))
	s.mu.Unlock()

	s.fire(context.Background(), entityID, h.epoch)
}
