package timer

import (
	"strings"
	"time"
)

// SolveEvent is one immutable lap record for a question. Timestamp is the
// elapsed time at which the lap was recorded (cumulative, not interval
// relative); Duration is the interval attributed by that lap, so
// Timestamp-Duration is where the attributed interval began.
type SolveEvent struct {
	Timestamp time.Duration
	Duration  time.Duration
	Answer    *string
}

// Question is the authoritative per-question record for a session.
// SolveTime always equals the sum of event durations and Attempts always
// equals the event count; both only ever grow within a session.
type Question struct {
	Number    int
	SolveTime time.Duration
	Answer    *string
	Attempts  int
	Events    []SolveEvent
	// StartTime is the elapsed offset at which the most recent attributed
	// interval began. Display only.
	StartTime time.Duration
	// Correct is nil until graded against an answer key, and stays nil for
	// questions the key does not cover or that were never answered.
	Correct *bool
}

// record appends a lap event and updates the derived fields.
func (q *Question) record(timestamp, duration time.Duration, answer *string) {
	q.Events = append(q.Events, SolveEvent{
		Timestamp: timestamp,
		Duration:  duration,
		Answer:    answer,
	})
	q.Attempts++
	q.SolveTime += duration
	q.StartTime = timestamp - duration
}

// setAnswer applies the answer overwrite policy: an empty string clears the
// stored answer (resubmit blank to clear), a non-empty string replaces it.
// Callers pass nil to leave the answer untouched and never reach here.
func (q *Question) setAnswer(raw string) {
	if raw == "" {
		q.Answer = nil
		return
	}
	answer := raw
	q.Answer = &answer
}

// Ledger maps question numbers to their records for one session. The range is
// contiguous and fixed at exam start.
type Ledger struct {
	start     int
	end       int
	questions map[int]*Question
}

// NewLedger builds a ledger with one zeroed question per number in
// [start, end]. The range is validated upstream by Config.Validate.
func NewLedger(start, end int) *Ledger {
	questions := make(map[int]*Question, end-start+1)
	for n := start; n <= end; n++ {
		questions[n] = &Question{Number: n}
	}
	return &Ledger{start: start, end: end, questions: questions}
}

// Question returns the record for number n, or nil if n is out of range.
func (l *Ledger) Question(n int) *Question {
	return l.questions[n]
}

// Range returns the inclusive question number range.
func (l *Ledger) Range() (start, end int) {
	return l.start, l.end
}

// Count returns the number of questions in the ledger.
func (l *Ledger) Count() int {
	return l.end - l.start + 1
}

// Questions returns the records in ascending question order.
func (l *Ledger) Questions() []*Question {
	out := make([]*Question, 0, l.Count())
	for n := l.start; n <= l.end; n++ {
		out = append(out, l.questions[n])
	}
	return out
}

// NextAfter returns the next higher question number within range.
func (l *Ledger) NextAfter(n int) (int, bool) {
	if n >= l.start && n < l.end {
		return n + 1, true
	}
	return 0, false
}

// FirstUnattempted scans from the start of the range for the first question
// with no recorded laps.
func (l *Ledger) FirstUnattempted() (int, bool) {
	for n := l.start; n <= l.end; n++ {
		if l.questions[n].Attempts == 0 {
			return n, true
		}
	}
	return 0, false
}

// TotalSolveTime sums attributed time across all questions.
func (l *Ledger) TotalSolveTime() time.Duration {
	var total time.Duration
	for _, q := range l.questions {
		total += q.SolveTime
	}
	return total
}

// Grade recomputes correctness for every question against the supplied key
// using trimmed string equality. A submitted answer that trims to empty is
// always incorrect; a question missing from the key, or never answered, stays
// ungraded. Grade is non-destructive and may be called repeatedly.
func (l *Ledger) Grade(key map[int]string) {
	for _, q := range l.questions {
		q.Correct = nil

		expected, ok := key[q.Number]
		if !ok || q.Answer == nil {
			continue
		}

		got := strings.TrimSpace(*q.Answer)
		correct := got != "" && got == strings.TrimSpace(expected)
		q.Correct = &correct
	}
}
