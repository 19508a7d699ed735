package timer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func snapshotFixture(t *testing.T) *Snapshot {
	t.Helper()
	s := activeSession(t, 1, 3, 20)
	s.Advance(45 * time.Second)
	s.RecordLap(1, str("A"))
	s.Advance(30 * time.Second)
	s.RecordLap(2, str("  14 "))
	s.Advance(5 * time.Second)

	snap := s.Snapshot()
	if snap == nil {
		t.Fatal("snapshot of active session is nil")
	}
	return snap
}

func TestSnapshotOfIdleSessionIsNil(t *testing.T) {
	s := NewSession(nil)
	if snap := s.Snapshot(); snap != nil {
		t.Fatalf("idle snapshot = %+v", snap)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := snapshotFixture(t)

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := NewSession(nil)
	if err := restored.RestoreSnapshot(&decoded); err != nil {
		t.Fatalf("restore: %v", err)
	}

	st := restored.State()
	if st.Phase != PhaseActive {
		t.Fatalf("phase = %v", st.Phase)
	}
	if st.Elapsed != 80*time.Second {
		t.Fatalf("elapsed = %v, want 80s", st.Elapsed)
	}
	if st.Problem != 5*time.Second {
		t.Fatalf("problem = %v, want 5s", st.Problem)
	}
	if st.Focus != 3 {
		t.Fatalf("focus = %d, want 3", st.Focus)
	}

	q1 := question(t, restored, 1)
	if q1.Attempts != 1 || q1.SolveTime != 45*time.Second {
		t.Fatalf("question 1 after restore: attempts=%d solve=%v", q1.Attempts, q1.SolveTime)
	}
	if q1.Answer == nil || *q1.Answer != "A" {
		t.Fatalf("question 1 answer = %v", q1.Answer)
	}
	// Restored aggregates keep the ledger invariants exactly.
	var sum time.Duration
	for _, e := range q1.Events {
		sum += e.Duration
	}
	if q1.SolveTime != sum {
		t.Fatalf("restored solve %v != event sum %v", q1.SolveTime, sum)
	}
}

func TestRestoreAlwaysLandsPaused(t *testing.T) {
	snap := snapshotFixture(t)

	s := NewSession(nil)
	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if !s.State().Paused {
		t.Fatal("restored session not paused")
	}

	// A reload must never silently resume ticking.
	s.Advance(time.Hour)
	if got := s.State().Elapsed; got != 80*time.Second {
		t.Fatalf("paused restore advanced to %v", got)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	snap := snapshotFixture(t)

	s := NewSession(nil)
	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("first restore: %v", err)
	}
	first := s.State()

	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("second restore: %v", err)
	}
	second := s.State()

	if first.Elapsed != second.Elapsed || first.Focus != second.Focus ||
		len(first.Questions) != len(second.Questions) {
		t.Fatalf("repeated restore diverged: %+v vs %+v", first, second)
	}
	for i := range first.Questions {
		if first.Questions[i].SolveTime != second.Questions[i].SolveTime ||
			first.Questions[i].Attempts != second.Questions[i].Attempts {
			t.Fatalf("question %d diverged", first.Questions[i].Number)
		}
	}
}

func TestRestoreReappliesGrading(t *testing.T) {
	s := activeSession(t, 1, 2, 20)
	s.RecordLap(1, str("X"))
	s.Finish()
	s.Grade(map[int]string{1: "X"})
	snap := s.Snapshot()

	restored := NewSession(nil)
	if err := restored.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	st := restored.State()
	if !st.Graded {
		t.Fatal("grading key lost in restore")
	}
	q := question(t, restored, 1)
	if q.Correct == nil || !*q.Correct {
		t.Fatal("correctness lost in restore")
	}
}

func TestRestoreTimeUpSessionKeepsOvertime(t *testing.T) {
	var fired int
	s := NewSession(func(Event) { fired++ })
	if err := s.Start(Config{RangeStart: 1, RangeEnd: 2, TotalMinutes: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Advance(InitialHold)
	s.Advance(60 * time.Second)
	s.Advance(10 * time.Second)
	snap := s.Snapshot()
	fired = 0

	restored := NewSession(func(Event) { fired++ })
	if err := restored.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	st := restored.State()
	if !st.TimeUp {
		t.Fatal("time-up flag lost")
	}
	if st.Overtime != 10*time.Second {
		t.Fatalf("overtime = %v, want 10s", st.Overtime)
	}
	if fired != 0 {
		t.Fatalf("time-up callback re-fired %d times on restore", fired)
	}
}

func TestSnapshotValidation(t *testing.T) {
	corrupt := func(f func(*Snapshot)) *Snapshot {
		snap := snapshotFixture(t)
		f(snap)
		return snap
	}

	cases := []struct {
		name string
		snap *Snapshot
	}{
		{"wrong version", corrupt(func(s *Snapshot) { s.Version = 2 })},
		{"idle phase", corrupt(func(s *Snapshot) { s.Phase = PhaseIdle })},
		{"bad config", corrupt(func(s *Snapshot) { s.Config.RangeStart = 0 })},
		{"negative clock", corrupt(func(s *Snapshot) { s.Clock.ElapsedSeconds = -1 })},
		{"question count mismatch", corrupt(func(s *Snapshot) { s.Questions = s.Questions[:1] })},
		{"attempts mismatch", corrupt(func(s *Snapshot) { s.Questions[0].Attempts++ })},
		{"aggregate drift", corrupt(func(s *Snapshot) { s.Questions[0].SolveSeconds += 5 })},
		{"focus out of range", corrupt(func(s *Snapshot) { s.Focus = 99 })},
		{"selection out of range", corrupt(func(s *Snapshot) { s.BatchSelection = []int{42} })},
		{"junk answer key", corrupt(func(s *Snapshot) { s.AnswerKey = map[string]string{"abc": "1"} })},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.snap.Validate()
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("err = %v, want ErrInvalidSnapshot", err)
			}

			s := NewSession(nil)
			if err := s.RestoreSnapshot(tc.snap); err == nil {
				t.Fatal("corrupt snapshot restored")
			}
			// A failed restore must not leave a half-built session behind.
			if s.Phase() != PhaseIdle {
				t.Fatalf("phase = %v after failed restore", s.Phase())
			}
		})
	}
}

func TestRestoreNilSnapshot(t *testing.T) {
	s := NewSession(nil)
	if err := s.RestoreSnapshot(nil); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("err = %v", err)
	}
}
