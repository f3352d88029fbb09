/*
scheduler.go - Calendar edge-triggered announcement scheduler

PURPOSE:
  Polls wall-clock time on a fixed interval and invokes the Announcer
  exactly once per calendar boundary crossing: once when the weekly
  boundary hour is entered, once when the end-of-month hour is entered.

EDGE TRIGGER:
  Each boundary is an independent two-state machine {armed, fired}. A
  naive "if boundary then fire" check would fire on every tick for the
  entire matching hour; the edge transition armed->fired fires once, and
  the first tick where the predicate turns false re-arms for the next
  period.

RESTART POLICY:
  Edge state is held in memory only. A restart inside a boundary hour may
  announce a second time; a restart that sleeps through the whole hour
  misses it. This matches the original behavior and keeps scheduler state
  out of the durable store.

USAGE:
  sched := schedule.New(announcer, schedule.DefaultConfig())
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - boundary.go: the calendar predicates
  - api/announce.go: the Announcer implementation
*/
package schedule

import (
	"log"
	"sync"
	"time"
)

// Announcer receives the boundary callbacks. Implementations must not
// block for long; the scheduler calls them from its poll loop.
type Announcer interface {
	AnnounceWeekly()
	AnnounceMonthly()
}

// edge is one boundary's debounce state.
type edge struct {
	fired bool
}

// transition applies one poll observation and reports whether this tick is
// the rising edge (armed -> fired).
func (e *edge) transition(boundary bool) bool {
	switch {
	case boundary && !e.fired:
		e.fired = true
		return true
	case !boundary && e.fired:
		e.fired = false
	}
	return false
}

// Scheduler runs the poll loop as a background goroutine.
type Scheduler struct {
	Announcer Announcer
	Config    Config

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	weekly  edge
	monthly edge

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// tickMu guards the edges separately from the lifecycle mutex, so
	// Stop can wait on the loop without deadlocking a tick in flight.
	tickMu sync.Mutex
}

// New creates a scheduler. Zero-valued config fields fall back to defaults.
func New(announcer Announcer, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	return &Scheduler{
		Announcer: announcer,
		Config:    cfg,
		Now:       time.Now,
		stop:      make(chan bool),
	}
}

// Start begins the poll loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.Config.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v", s.Config.CheckInterval)
}

// Stop stops the poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Observe immediately on start so a boundary hour already in progress
	// is not missed.
	s.Tick()

	for {
		select {
		case <-s.ticker.C:
			s.Tick()
		case <-s.stop:
			return
		}
	}
}

// Tick performs one poll observation. Exported so tests and admin tooling
// can drive the state machine without wall-clock waits.
func (s *Scheduler) Tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.Now()

	if s.weekly.transition(s.Config.isWeeklyBoundary(now)) {
		log.Printf("[Scheduler] Weekly boundary crossed at %v", now)
		s.Announcer.AnnounceWeekly()
	}

	if s.monthly.transition(s.Config.isMonthlyBoundary(now)) {
		log.Printf("[Scheduler] Monthly boundary crossed at %v", now)
		s.Announcer.AnnounceMonthly()
	}
}
