package timer

import "time"

// InitialHold is the brief paused window after Start before ticking begins,
// so the full time budget is visible before the countdown moves.
const InitialHold = 500 * time.Millisecond

// Clock is the single source of truth for how much exam time has passed.
// It is advanced by explicit Advance calls from a single runner, never by
// reading the wall clock directly, so paused intervals and suspended tabs
// cannot leak into elapsed time.
//
// Clock is not safe for concurrent use; Session serializes all access.
type Clock struct {
	elapsed   time.Duration
	problem   time.Duration
	paused    bool
	timeUp    bool
	running   bool
	unlimited bool
	budget    time.Duration
	hold      time.Duration
	fired     bool
	onTimeUp  func()
}

// NewClock creates a stopped clock. onTimeUp fires exactly once when a finite
// budget is exhausted; it may be nil.
func NewClock(onTimeUp func()) *Clock {
	return &Clock{onTimeUp: onTimeUp}
}

// Start zeroes the clock and begins a new run with the given budget.
// A zero budget together with unlimited=false is rejected upstream by
// Config.Validate; the clock itself never fails.
func (c *Clock) Start(budget time.Duration, unlimited bool) {
	c.elapsed = 0
	c.problem = 0
	c.paused = false
	c.timeUp = false
	c.fired = false
	c.budget = budget
	c.unlimited = unlimited
	c.hold = InitialHold
	c.running = true
}

// Advance adds d to elapsed and per-question time. It is a no-op while the
// clock is stopped or paused, and consumes the initial hold window first.
//
// The time-up transition is evaluated against the reading before this tick,
// and the tick that observes an exhausted budget still lands in full. The
// auto-pause therefore takes effect from the next tick, and the crossing
// interval accrues as overtime instead of being discarded.
func (c *Clock) Advance(d time.Duration) {
	if !c.running || c.paused || d <= 0 {
		return
	}

	if c.hold > 0 {
		if d <= c.hold {
			c.hold -= d
			return
		}
		d -= c.hold
		c.hold = 0
	}

	c.checkTimeUp()
	c.elapsed += d
	c.problem += d
}

// TogglePause flips the paused flag. No-op if the clock was never started.
func (c *Clock) TogglePause() {
	if !c.running {
		return
	}
	c.paused = !c.paused
}

// RecordLap zeroes the per-question time. Elapsed time is unaffected.
func (c *Clock) RecordLap() {
	c.problem = 0
}

// Resume clears the paused flag. No-op if the clock was never started.
func (c *Clock) Resume() {
	if !c.running {
		return
	}
	c.paused = false
}

// Stop forces the clock into the paused state (exam finished).
func (c *Clock) Stop() {
	if !c.running {
		return
	}
	c.paused = true
}

// Reset zeroes all fields and marks the clock as not running.
func (c *Clock) Reset() {
	*c = Clock{onTimeUp: c.onTimeUp}
}

// Restore adopts a snapshot verbatim and always resumes paused: a reload must
// never silently resume ticking. The fired flag follows timeUp so the time-up
// callback cannot re-fire from restored state.
func (c *Clock) Restore(elapsed, problem time.Duration, timeUp bool, budget time.Duration, unlimited bool) {
	c.elapsed = elapsed
	c.problem = problem
	c.timeUp = timeUp
	c.fired = timeUp
	c.budget = budget
	c.unlimited = unlimited
	c.hold = 0
	c.paused = true
	c.running = true
}

// MarkTimeUp marks the budget as exhausted without invoking the callback.
// Used when finishing an exam whose elapsed time already passed the budget.
func (c *Clock) MarkTimeUp() {
	if c.unlimited || c.fired {
		return
	}
	if c.elapsed >= c.budget {
		c.timeUp = true
		c.fired = true
	}
}

func (c *Clock) checkTimeUp() {
	if c.unlimited || c.fired || c.elapsed < c.budget {
		return
	}
	c.timeUp = true
	c.fired = true
	c.paused = true
	if c.onTimeUp != nil {
		c.onTimeUp()
	}
}

// Elapsed returns time since exam start, excluding paused intervals.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

// Problem returns time since the last recorded lap.
func (c *Clock) Problem() time.Duration { return c.problem }

// Paused reports whether the clock is currently paused.
func (c *Clock) Paused() bool { return c.paused }

// TimeUp reports whether the finite budget has been exhausted.
func (c *Clock) TimeUp() bool { return c.timeUp }

// Running reports whether Start has been called without a subsequent Reset.
func (c *Clock) Running() bool { return c.running }

// Unlimited reports whether the time-up transition is disabled.
func (c *Clock) Unlimited() bool { return c.unlimited }

// Budget returns the configured time budget (zero when unlimited).
func (c *Clock) Budget() time.Duration { return c.budget }

// Overtime returns time accrued past the budget; zero before time-up.
func (c *Clock) Overtime() time.Duration {
	if !c.timeUp || c.unlimited {
		return 0
	}
	if c.elapsed <= c.budget {
		return 0
	}
	return c.elapsed - c.budget
}

// Remaining returns budget minus elapsed, floored at zero. Meaningless for
// unlimited sessions, where it reports zero.
func (c *Clock) Remaining() time.Duration {
	if c.unlimited || c.elapsed >= c.budget {
		return 0
	}
	return c.budget - c.elapsed
}
