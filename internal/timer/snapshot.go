package timer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// SnapshotVersion is the current persisted-snapshot schema version. Snapshots
// carrying any other version fail validation and are treated as absent; no
// partial recovery is ever attempted.
const SnapshotVersion = 1

// ErrInvalidSnapshot is wrapped by all snapshot validation failures.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// aggregateTolerance bounds the drift allowed between a stored solve-time
// aggregate and the sum of its event durations (seconds survive JSON as
// float64, so exact equality is too strict).
const aggregateTolerance = 0.001

// SnapshotClock carries the clock fields of a persisted session.
type SnapshotClock struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ProblemSeconds float64 `json:"current_problem_seconds"`
	TimeUp         bool    `json:"time_up"`
}

// SnapshotEvent is the persisted form of a SolveEvent, in seconds.
type SnapshotEvent struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Answer           *string `json:"answer,omitempty"`
}

// SnapshotQuestion is the persisted form of a Question, in seconds.
type SnapshotQuestion struct {
	Number       int             `json:"number"`
	SolveSeconds float64         `json:"solve_seconds"`
	Answer       *string         `json:"answer,omitempty"`
	Attempts     int             `json:"attempts"`
	StartSeconds float64         `json:"start_seconds"`
	Correct      *bool           `json:"correct,omitempty"`
	Events       []SnapshotEvent `json:"events"`
}

// Snapshot is the JSON-serializable tuple of everything a reload needs:
// configuration, ledger, clock fields, focus, batch selection, and grading
// key.
type Snapshot struct {
	Version        int                `json:"version"`
	SavedAt        time.Time          `json:"saved_at"`
	Phase          Phase              `json:"phase"`
	Config         Config             `json:"config"`
	Clock          SnapshotClock      `json:"clock"`
	Focus          int                `json:"focus"`
	BatchMode      bool               `json:"batch_mode"`
	BatchSelection []int              `json:"batch_selection,omitempty"`
	AnswerKey      map[string]string  `json:"answer_key,omitempty"`
	Questions      []SnapshotQuestion `json:"questions"`
}

// Validate checks the snapshot against the current schema and the core
// invariants. Any failure means the snapshot is unusable as a whole.
func (snap *Snapshot) Validate() error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidSnapshot, snap.Version, SnapshotVersion)
	}
	if snap.Phase != PhaseActive && snap.Phase != PhaseReviewing {
		return fmt.Errorf("%w: phase %q", ErrInvalidSnapshot, snap.Phase)
	}
	if err := snap.Config.Validate(); err != nil {
		return fmt.Errorf("%w: config: %v", ErrInvalidSnapshot, err)
	}
	if snap.Clock.ElapsedSeconds < 0 || snap.Clock.ProblemSeconds < 0 {
		return fmt.Errorf("%w: negative clock reading", ErrInvalidSnapshot)
	}

	start, end := snap.Config.RangeStart, snap.Config.RangeEnd
	if len(snap.Questions) != end-start+1 {
		return fmt.Errorf("%w: %d questions for range [%d,%d]", ErrInvalidSnapshot, len(snap.Questions), start, end)
	}

	seen := make(map[int]bool, len(snap.Questions))
	for _, q := range snap.Questions {
		if q.Number < start || q.Number > end {
			return fmt.Errorf("%w: question %d out of range", ErrInvalidSnapshot, q.Number)
		}
		if seen[q.Number] {
			return fmt.Errorf("%w: duplicate question %d", ErrInvalidSnapshot, q.Number)
		}
		seen[q.Number] = true

		if q.Attempts != len(q.Events) {
			return fmt.Errorf("%w: question %d attempts %d != %d events", ErrInvalidSnapshot, q.Number, q.Attempts, len(q.Events))
		}
		var sum float64
		for _, e := range q.Events {
			if e.DurationSeconds < 0 {
				return fmt.Errorf("%w: question %d negative event duration", ErrInvalidSnapshot, q.Number)
			}
			sum += e.DurationSeconds
		}
		if math.Abs(sum-q.SolveSeconds) > aggregateTolerance {
			return fmt.Errorf("%w: question %d solve time %.3f != event sum %.3f", ErrInvalidSnapshot, q.Number, q.SolveSeconds, sum)
		}
	}

	if snap.Focus != 0 && (snap.Focus < start || snap.Focus > end) {
		return fmt.Errorf("%w: focus %d out of range", ErrInvalidSnapshot, snap.Focus)
	}
	for _, n := range snap.BatchSelection {
		if n < start || n > end {
			return fmt.Errorf("%w: batch selection %d out of range", ErrInvalidSnapshot, n)
		}
	}
	for raw := range snap.AnswerKey {
		if _, err := strconv.Atoi(raw); err != nil {
			return fmt.Errorf("%w: answer key entry %q", ErrInvalidSnapshot, raw)
		}
	}

	return nil
}

// Snapshot captures the whole session tuple for persistence. Returns nil for
// an idle session; there is nothing worth restoring.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseIdle || s.ledger == nil {
		return nil
	}

	snap := &Snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Phase:   s.phase,
		Config:  s.cfg,
		Clock: SnapshotClock{
			ElapsedSeconds: s.clock.Elapsed().Seconds(),
			ProblemSeconds: s.clock.Problem().Seconds(),
			TimeUp:         s.clock.TimeUp(),
		},
		Focus:     s.focus,
		BatchMode: s.batchMode,
	}

	start, end := s.ledger.Range()
	for n := start; n <= end; n++ {
		if _, selected := s.batchSel[n]; selected {
			snap.BatchSelection = append(snap.BatchSelection, n)
		}
	}

	if s.answerKey != nil {
		snap.AnswerKey = make(map[string]string, len(s.answerKey))
		for n, answer := range s.answerKey {
			snap.AnswerKey[strconv.Itoa(n)] = answer
		}
	}

	snap.Questions = make([]SnapshotQuestion, 0, s.ledger.Count())
	for _, q := range s.ledger.Questions() {
		sq := SnapshotQuestion{
			Number:       q.Number,
			SolveSeconds: q.SolveTime.Seconds(),
			Answer:       copyAnswer(q.Answer),
			Attempts:     q.Attempts,
			StartSeconds: q.StartTime.Seconds(),
			Correct:      copyBool(q.Correct),
			Events:       make([]SnapshotEvent, len(q.Events)),
		}
		for i, e := range q.Events {
			sq.Events[i] = SnapshotEvent{
				TimestampSeconds: e.Timestamp.Seconds(),
				DurationSeconds:  e.Duration.Seconds(),
				Answer:           copyAnswer(e.Answer),
			}
		}
		snap.Questions = append(snap.Questions, sq)
	}

	return snap
}

// RestoreSnapshot rebuilds the session from a validated snapshot. The clock
// always lands paused regardless of how the snapshot was taken, and solve
// times are recomputed from event durations so the ledger invariants hold
// exactly after restore. Restoring is idempotent: applying the same snapshot
// twice yields the same state.
func (s *Session) RestoreSnapshot(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil", ErrInvalidSnapshot)
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := snap.Config
	ledger := NewLedger(cfg.RangeStart, cfg.RangeEnd)
	for _, sq := range snap.Questions {
		q := ledger.Question(sq.Number)
		q.Answer = copyAnswer(sq.Answer)
		q.StartTime = fromSeconds(sq.StartSeconds)
		q.Correct = copyBool(sq.Correct)
		for _, se := range sq.Events {
			q.Events = append(q.Events, SolveEvent{
				Timestamp: fromSeconds(se.TimestampSeconds),
				Duration:  fromSeconds(se.DurationSeconds),
				Answer:    copyAnswer(se.Answer),
			})
		}
		q.Attempts = len(q.Events)
		q.SolveTime = 0
		for _, e := range q.Events {
			q.SolveTime += e.Duration
		}
	}

	s.cfg = cfg
	s.ledger = ledger
	s.phase = snap.Phase
	s.focus = snap.Focus
	if s.focus == 0 {
		s.focus = cfg.RangeStart
	}
	s.batchMode = snap.BatchMode
	s.batchSel = make(map[int]struct{}, len(snap.BatchSelection))
	for _, n := range snap.BatchSelection {
		s.batchSel[n] = struct{}{}
	}

	s.answerKey = nil
	if snap.AnswerKey != nil {
		s.answerKey = make(map[int]string, len(snap.AnswerKey))
		for raw, answer := range snap.AnswerKey {
			n, _ := strconv.Atoi(raw) // Validated above.
			s.answerKey[n] = answer
		}
		s.ledger.Grade(s.answerKey)
	}

	s.clock.Restore(
		fromSeconds(snap.Clock.ElapsedSeconds),
		fromSeconds(snap.Clock.ProblemSeconds),
		snap.Clock.TimeUp,
		cfg.Budget(),
		cfg.Unlimited,
	)

	return nil
}

func fromSeconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
