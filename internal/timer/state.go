package timer

import "time"

// QuestionState is a point-in-time copy of one question's record.
type QuestionState struct {
	Number    int
	SolveTime time.Duration
	Answer    *string
	Attempts  int
	StartTime time.Duration
	Correct   *bool
	Events    []SolveEvent
}

// State is a consistent, fully copied view of the session for read-only
// consumers (HTTP state endpoint, WebSocket stream, reports, exports). The
// core exposes no mutation path through it.
type State struct {
	Phase          Phase
	Config         Config
	Elapsed        time.Duration
	Problem        time.Duration
	Remaining      time.Duration
	Overtime       time.Duration
	Paused         bool
	TimeUp         bool
	Focus          int
	BatchMode      bool
	BatchSelection []int
	Graded         bool
	Questions      []QuestionState
}

// State captures the current session state in one atomic read.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Phase:     s.phase,
		Config:    s.cfg,
		Elapsed:   s.clock.Elapsed(),
		Problem:   s.clock.Problem(),
		Remaining: s.clock.Remaining(),
		Overtime:  s.clock.Overtime(),
		Paused:    s.clock.Paused(),
		TimeUp:    s.clock.TimeUp(),
		Focus:     s.focus,
		BatchMode: s.batchMode,
		Graded:    s.answerKey != nil,
	}

	if s.ledger == nil {
		return st
	}

	start, end := s.ledger.Range()
	for n := start; n <= end; n++ {
		if _, selected := s.batchSel[n]; selected {
			st.BatchSelection = append(st.BatchSelection, n)
		}
	}

	st.Questions = make([]QuestionState, 0, s.ledger.Count())
	for _, q := range s.ledger.Questions() {
		qs := QuestionState{
			Number:    q.Number,
			SolveTime: q.SolveTime,
			Answer:    copyAnswer(q.Answer),
			Attempts:  q.Attempts,
			StartTime: q.StartTime,
			Correct:   copyBool(q.Correct),
			Events:    make([]SolveEvent, len(q.Events)),
		}
		for i, e := range q.Events {
			qs.Events[i] = SolveEvent{
				Timestamp: e.Timestamp,
				Duration:  e.Duration,
				Answer:    copyAnswer(e.Answer),
			}
		}
		st.Questions = append(st.Questions, qs)
	}

	return st
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
