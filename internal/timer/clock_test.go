package timer

import (
	"testing"
	"time"
)

// startTicking starts the clock and consumes the initial hold window so the
// next Advance moves elapsed time directly.
func startTicking(c *Clock, budget time.Duration, unlimited bool) {
	c.Start(budget, unlimited)
	c.Advance(InitialHold)
}

func TestClockAdvanceAccumulates(t *testing.T) {
	c := NewClock(nil)
	startTicking(c, 10*time.Minute, false)

	for i := 0; i < 20; i++ {
		c.Advance(50 * time.Millisecond)
	}

	if got := c.Elapsed(); got != time.Second {
		t.Fatalf("elapsed = %v, want 1s", got)
	}
	if got := c.Problem(); got != time.Second {
		t.Fatalf("problem = %v, want 1s", got)
	}
}

func TestClockInitialHoldDelaysTicking(t *testing.T) {
	c := NewClock(nil)
	c.Start(10*time.Minute, false)

	// The first half second is swallowed by the hold window.
	c.Advance(200 * time.Millisecond)
	if c.Elapsed() != 0 {
		t.Fatalf("elapsed advanced during hold: %v", c.Elapsed())
	}

	// An interval spanning the hold boundary only counts the excess.
	c.Advance(400 * time.Millisecond)
	if got := c.Elapsed(); got != 100*time.Millisecond {
		t.Fatalf("elapsed = %v, want 100ms", got)
	}
}

func TestClockPauseStopsAdvance(t *testing.T) {
	c := NewClock(nil)
	startTicking(c, 10*time.Minute, false)

	c.Advance(2 * time.Second)
	c.TogglePause()
	c.Advance(5 * time.Second)

	if got := c.Elapsed(); got != 2*time.Second {
		t.Fatalf("elapsed advanced while paused: %v", got)
	}

	c.TogglePause()
	c.Advance(time.Second)
	if got := c.Elapsed(); got != 3*time.Second {
		t.Fatalf("elapsed = %v, want 3s", got)
	}
}

func TestClockDoubleToggleIsIdentity(t *testing.T) {
	c := NewClock(nil)
	startTicking(c, 10*time.Minute, false)
	c.Advance(7 * time.Second)

	c.TogglePause()
	c.TogglePause()

	if c.Paused() {
		t.Fatal("clock paused after double toggle")
	}
	if got := c.Elapsed(); got != 7*time.Second {
		t.Fatalf("elapsed = %v, want 7s", got)
	}
	if got := c.Problem(); got != 7*time.Second {
		t.Fatalf("problem = %v, want 7s", got)
	}
}

func TestClockTogglePauseBeforeStartIsNoop(t *testing.T) {
	c := NewClock(nil)
	c.TogglePause()
	if c.Paused() {
		t.Fatal("unstarted clock became paused")
	}
}

func TestClockRecordLapResetsProblemOnly(t *testing.T) {
	c := NewClock(nil)
	startTicking(c, 10*time.Minute, false)
	c.Advance(90 * time.Second)

	c.RecordLap()

	if got := c.Problem(); got != 0 {
		t.Fatalf("problem = %v after lap, want 0", got)
	}
	if got := c.Elapsed(); got != 90*time.Second {
		t.Fatalf("elapsed = %v, want 90s", got)
	}
}

func TestClockTimeUpFiresExactlyOnce(t *testing.T) {
	fired := 0
	c := NewClock(func() { fired++ })
	startTicking(c, time.Minute, false)

	c.Advance(59 * time.Second)
	if c.TimeUp() {
		t.Fatal("time up before budget")
	}

	// The tick that reaches the budget still counts in full.
	c.Advance(time.Second)
	if c.TimeUp() {
		t.Fatal("time up on the tick that reached the budget")
	}

	// The next tick fires the transition and still lands, so the clock
	// pauses already carrying that interval as overtime.
	c.Advance(time.Second)
	if !c.TimeUp() {
		t.Fatal("time up not set past budget")
	}
	if !c.Paused() {
		t.Fatal("clock not auto-paused at time up")
	}
	if fired != 1 {
		t.Fatalf("callback fired %d times, want 1", fired)
	}
	if got := c.Overtime(); got != time.Second {
		t.Fatalf("overtime = %v, want 1s", got)
	}

	// Overtime ticking must not re-fire the callback.
	c.Resume()
	c.Advance(30 * time.Second)
	c.Advance(30 * time.Second)
	if fired != 1 {
		t.Fatalf("callback re-fired: %d", fired)
	}
	if got := c.Overtime(); got != 61*time.Second {
		t.Fatalf("overtime = %v, want 1m1s", got)
	}
}

func TestClockUnlimitedNeverTimesUp(t *testing.T) {
	fired := 0
	c := NewClock(func() { fired++ })
	startTicking(c, 0, true)

	c.Advance(24 * time.Hour)

	if c.TimeUp() || fired != 0 {
		t.Fatalf("unlimited clock timed up (fired=%d)", fired)
	}
	if got := c.Overtime(); got != 0 {
		t.Fatalf("overtime = %v on unlimited clock", got)
	}
}

func TestClockRestoreAlwaysPauses(t *testing.T) {
	c := NewClock(nil)
	c.Restore(5*time.Minute, 40*time.Second, false, 10*time.Minute, false)

	if !c.Paused() {
		t.Fatal("restored clock not paused")
	}
	if !c.Running() {
		t.Fatal("restored clock not running")
	}
	if got := c.Elapsed(); got != 5*time.Minute {
		t.Fatalf("elapsed = %v, want 5m", got)
	}
	if got := c.Problem(); got != 40*time.Second {
		t.Fatalf("problem = %v, want 40s", got)
	}

	// No hold window after restore: resuming ticks immediately.
	c.Resume()
	c.Advance(time.Second)
	if got := c.Elapsed(); got != 5*time.Minute+time.Second {
		t.Fatalf("elapsed = %v after resume", got)
	}
}

func TestClockRestoreTimeUpDoesNotRefire(t *testing.T) {
	fired := 0
	c := NewClock(func() { fired++ })
	c.Restore(11*time.Minute, 0, true, 10*time.Minute, false)

	c.Resume()
	c.Advance(time.Minute)

	if fired != 0 {
		t.Fatalf("callback fired %d times after restore", fired)
	}
	if got := c.Overtime(); got != 2*time.Minute {
		t.Fatalf("overtime = %v, want 2m", got)
	}
}

func TestClockResetClearsEverything(t *testing.T) {
	c := NewClock(nil)
	startTicking(c, time.Minute, false)
	c.Advance(2 * time.Minute)

	c.Reset()

	if c.Running() || c.Paused() || c.TimeUp() {
		t.Fatal("reset clock retains state flags")
	}
	if c.Elapsed() != 0 || c.Problem() != 0 {
		t.Fatal("reset clock retains time")
	}
	c.Advance(time.Second)
	if c.Elapsed() != 0 {
		t.Fatal("stopped clock advanced")
	}
}

func TestClockRemaining(t *testing.T) {
	c := NewClock(nil)
	startTicking(c, 10*time.Minute, false)
	c.Advance(4 * time.Minute)

	if got := c.Remaining(); got != 6*time.Minute {
		t.Fatalf("remaining = %v, want 6m", got)
	}

	c.Advance(7 * time.Minute)
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %v past budget, want 0", got)
	}
}
