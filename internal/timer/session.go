package timer

import (
	"fmt"
	"sync"
	"time"
)

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseActive    Phase = "ACTIVE"
	PhaseReviewing Phase = "REVIEWING"
)

// Event names the session occurrences pushed to an external notifier.
type Event string

const (
	EventTimeUp Event = "time_up"
)

// ValidationError reports a rejected exam configuration. It is a plain
// condition, not a panic: the exam simply does not start.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Config is the exam configuration, set once at session start and immutable
// during the session.
type Config struct {
	Name         string  `json:"name"`
	RangeStart   int     `json:"range_start"`
	RangeEnd     int     `json:"range_end"`
	TotalMinutes float64 `json:"total_minutes"`
	Unlimited    bool    `json:"unlimited"`
}

// Validate checks the configuration and returns a ValidationError describing
// the first problem found.
func (c Config) Validate() error {
	if c.RangeStart <= 0 || c.RangeEnd <= 0 {
		return &ValidationError{Message: "question numbers must be positive"}
	}
	if c.RangeStart > c.RangeEnd {
		return &ValidationError{Message: fmt.Sprintf("question range start %d exceeds end %d", c.RangeStart, c.RangeEnd)}
	}
	if !c.Unlimited && c.TotalMinutes <= 0 {
		return &ValidationError{Message: "total minutes must be positive for a timed session"}
	}
	return nil
}

// Budget converts the configured minutes to a duration. Zero when unlimited.
func (c Config) Budget() time.Duration {
	if c.Unlimited {
		return 0
	}
	return time.Duration(c.TotalMinutes * float64(time.Minute))
}

// Session is the exam session state machine: configuration, clock, ledger,
// focus and batch-selection state, grading overlay.
//
// All operations serialize on one mutex, so ticks, laps, grading, and
// snapshots are atomic with respect to each other. A lap always reads a
// consistent clock and writes a consistent ledger.
type Session struct {
	mu sync.Mutex

	phase      Phase
	cfg        Config
	clock      *Clock
	ledger     *Ledger
	focus      int
	batchMode  bool
	batchSel   map[int]struct{}
	answerKey  map[int]string
	reviewedAt time.Time

	// notify receives lifecycle events (currently only time-up). It runs with
	// the session lock held and must not call back into the session.
	notify func(Event)
}

// NewSession creates an idle session. notify may be nil.
func NewSession(notify func(Event)) *Session {
	s := &Session{
		phase:    PhaseIdle,
		batchSel: make(map[int]struct{}),
		notify:   notify,
	}
	s.clock = NewClock(s.timeUp)
	return s
}

// timeUp is the clock's exactly-once budget-exhausted callback. The clock has
// already forced itself paused; the session moves to review so the UI lands on
// the results screen. Runs under the session lock (fired from Advance).
func (s *Session) timeUp() {
	s.phase = PhaseReviewing
	s.reviewedAt = time.Now()
	if s.notify != nil {
		s.notify(EventTimeUp)
	}
}

// Start validates the configuration and begins a fresh session: a zeroed
// ledger over the question range, focus on the first question, clock running.
// Any previous session state is discarded.
func (s *Session) Start(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.ledger = NewLedger(cfg.RangeStart, cfg.RangeEnd)
	s.focus = cfg.RangeStart
	s.batchMode = false
	s.batchSel = make(map[int]struct{})
	s.answerKey = nil
	s.reviewedAt = time.Time{}
	s.clock.Start(cfg.Budget(), cfg.Unlimited)
	s.phase = PhaseActive
	return nil
}

// Advance feeds a tick interval to the clock. Called by the session runner;
// harmless in any phase because the clock ignores ticks while paused or
// stopped.
func (s *Session) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Advance(d)
}

// TogglePause flips the clock's paused flag while the session is active.
func (s *Session) TogglePause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	s.clock.TogglePause()
}

// RecordLap attributes the accumulated per-question time to question n and
// optionally records an answer. With batch mode enabled the call instead
// toggles n's membership in the batch selection, storing any supplied answer
// immediately but deferring time attribution to RecordBatch.
//
// answer semantics: nil leaves the stored answer untouched, empty string
// clears it, non-empty replaces it.
//
// A lap on an inactive session or an out-of-range question is silently
// ignored; the core tolerates UI races.
func (s *Session) RecordLap(n int, answer *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	q := s.ledger.Question(n)
	if q == nil {
		return
	}

	if s.batchMode {
		if _, selected := s.batchSel[n]; selected {
			delete(s.batchSel, n)
		} else {
			s.batchSel[n] = struct{}{}
		}
		if answer != nil {
			q.setAnswer(*answer)
		}
		return
	}

	duration := s.clock.Problem()
	timestamp := s.clock.Elapsed()

	q.record(timestamp, duration, normalizeAnswer(answer))
	if answer != nil {
		q.setAnswer(*answer)
	}

	s.clock.RecordLap()
	s.advanceFocus(n)
}

// advanceFocus moves focus to the next higher question in range, else wraps to
// the first unattempted question, else stays put. Never fails.
func (s *Session) advanceFocus(n int) {
	if next, ok := s.ledger.NextAfter(n); ok {
		s.focus = next
		return
	}
	if first, ok := s.ledger.FirstUnattempted(); ok {
		s.focus = first
	}
}

// SetBatchMode enables or disables batch selection. Disabling discards the
// current selection without attributing any time.
func (s *Session) SetBatchMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	s.batchMode = on
	if !on {
		s.batchSel = make(map[int]struct{})
	}
}

// RecordBatch splits the accumulated interval equally across the selected
// questions. Every member gets one SolveEvent stamped with the shared batch
// timestamp and carrying the question's existing answer. Batch recording
// attributes time, it never changes answers. No-op with an empty selection.
func (s *Session) RecordBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive || len(s.batchSel) == 0 {
		return
	}

	total := s.clock.Problem()
	timestamp := s.clock.Elapsed()
	per := total / time.Duration(len(s.batchSel))

	start, end := s.ledger.Range()
	for n := start; n <= end; n++ {
		if _, selected := s.batchSel[n]; !selected {
			continue
		}
		q := s.ledger.Question(n)
		q.record(timestamp, per, copyAnswer(q.Answer))
		// All batch members share the interval start, not per-member offsets.
		q.StartTime = timestamp - total
	}

	s.batchSel = make(map[int]struct{})
	s.batchMode = false
	s.clock.RecordLap()
}

// Finish stops the clock and enters review. If a finite budget was already
// exhausted the time-up flag is set without re-firing the callback. The
// captured review timestamp is display-level only; elapsed time never
// double-counts the review gap because the clock only advances while
// un-paused.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	s.clock.Stop()
	s.clock.MarkTimeUp()
	s.reviewedAt = time.Now()
	s.phase = PhaseReviewing
}

// Continue resumes an exam from review: the clock un-pauses and laps are
// accepted again. After time-up, continued ticking accrues as overtime.
func (s *Session) Continue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseReviewing {
		return
	}
	s.phase = PhaseActive
	s.clock.Resume()
}

// Restart fully resets the session to idle: ledger, clock, focus, batch and
// grading state are all discarded.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseIdle
	s.cfg = Config{}
	s.ledger = nil
	s.focus = 0
	s.batchMode = false
	s.batchSel = make(map[int]struct{})
	s.answerKey = nil
	s.reviewedAt = time.Time{}
	s.clock.Reset()
}

// Grade attaches an answer key and recomputes correctness for every question.
// Only meaningful while reviewing; repeat calls replace the prior key.
func (s *Session) Grade(key map[int]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseReviewing {
		return
	}
	s.answerKey = make(map[int]string, len(key))
	for n, answer := range key {
		s.answerKey[n] = answer
	}
	s.ledger.Grade(s.answerKey)
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func normalizeAnswer(answer *string) *string {
	if answer == nil || *answer == "" {
		return nil
	}
	return copyAnswer(answer)
}

func copyAnswer(answer *string) *string {
	if answer == nil {
		return nil
	}
	v := *answer
	return &v
}
