package table

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Scheduler arms one-shot callbacks at absolute times. Callbacks run on their own
// goroutine and must take the orchestrator lock themselves.
type Scheduler struct {
	clock clockwork.Clock

	activeTimers   map[uuid.UUID]clockwork.Timer
	activeTimersMu sync.Mutex
	stopped        bool
}

// NewScheduler creates a scheduler on the given clock.
func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:        clock,
		activeTimers: make(map[uuid.UUID]clockwork.Timer),
	}
}

// At runs fn at ts. A time in the past fires with zero delay; nothing is dropped.
// There is no per-callback cancellation; Stop exists only for process shutdown.
func (s *Scheduler) At(ts time.Time, fn func()) uuid.UUID {
	id := uuid.New()

	delay := ts.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if s.stopped {
		log.Warn().Str("timer_id", id.String()).Msg("scheduler stopped; callback not armed")
		return id
	}

	s.activeTimers[id] = s.clock.AfterFunc(delay, func() {
		s.removeTimer(id)
		fn()
	})

	log.Debug().
		Str("timer_id", id.String()).
		Time("deadline", ts).
		Dur("delay", delay).
		Msg("scheduled one-shot timer")

	return id
}

// Pending returns the number of armed callbacks that have not fired.
func (s *Scheduler) Pending() int {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	return len(s.activeTimers)
}

// Stop cancels every armed callback and refuses new ones.
func (s *Scheduler) Stop() {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	s.stopped = true
	for id, timer := range s.activeTimers {
		timer.Stop()
		log.Debug().Str("timer_id", id.String()).Msg("cancelled timer on shutdown")
	}
	s.activeTimers = make(map[uuid.UUID]clockwork.Timer)
}

// removeTimer forgets a timer once it has fired.
func (s *Scheduler) removeTimer(id uuid.UUID) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	delete(s.activeTimers, id)
}
