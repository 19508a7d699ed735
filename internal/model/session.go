package model

import (
	"github.com/lapdesk/lapdesk-backend/internal/timer"
)

// StartSessionRequest is the payload for starting a new exam session.
// Cross-field rules (start ≤ end, budget required unless unlimited) are
// enforced by timer.Config.Validate, not binding tags.
type StartSessionRequest struct {
	Name         string  `json:"name" binding:"omitempty,max=120"`
	RangeStart   int     `json:"range_start" binding:"required,min=1"`
	RangeEnd     int     `json:"range_end" binding:"required,min=1"`
	TotalMinutes float64 `json:"total_minutes" binding:"omitempty,gt=0"`
	Unlimited    bool    `json:"unlimited"`
}

// Config converts the request into the core exam configuration.
func (r StartSessionRequest) Config() timer.Config {
	return timer.Config{
		Name:         r.Name,
		RangeStart:   r.RangeStart,
		RangeEnd:     r.RangeEnd,
		TotalMinutes: r.TotalMinutes,
		Unlimited:    r.Unlimited,
	}
}

// LapRequest records a lap for one question. A nil Answer means "just move
// focus"; an empty string clears the stored answer.
type LapRequest struct {
	Question int     `json:"question" binding:"required,min=1"`
	Answer   *string `json:"answer"`
}

// BatchModeRequest toggles batch selection mode.
type BatchModeRequest struct {
	Enabled bool `json:"enabled"`
}

// GradeRequest carries the externally supplied answer key, keyed by question
// number (JSON object keys are strings; handlers parse them).
type GradeRequest struct {
	AnswerKey map[string]string `json:"answer_key" binding:"required,min=1"`
}

// SolveEventView is the JSON form of one lap event, in seconds.
type SolveEventView struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Answer           *string `json:"answer,omitempty"`
}

// QuestionView is the JSON form of one question's ledger record.
type QuestionView struct {
	Number       int              `json:"number"`
	SolveSeconds float64          `json:"solve_seconds"`
	Answer       *string          `json:"answer,omitempty"`
	Attempts     int              `json:"attempts"`
	StartSeconds float64          `json:"start_seconds"`
	Correct      *bool            `json:"correct,omitempty"`
	Events       []SolveEventView `json:"events"`
}

// SessionState is the JSON view of the full session returned by the state
// endpoint and streamed over WebSocket.
type SessionState struct {
	Phase            timer.Phase    `json:"phase"`
	Config           timer.Config   `json:"config"`
	ElapsedSeconds   float64        `json:"elapsed_seconds"`
	ProblemSeconds   float64        `json:"current_problem_seconds"`
	RemainingSeconds float64        `json:"remaining_seconds"`
	OvertimeSeconds  float64        `json:"overtime_seconds"`
	Paused           bool           `json:"paused"`
	TimeUp           bool           `json:"time_up"`
	Focus            int            `json:"focus"`
	BatchMode        bool           `json:"batch_mode"`
	BatchSelection   []int          `json:"batch_selection,omitempty"`
	Graded           bool           `json:"graded"`
	Questions        []QuestionView `json:"questions"`
}

// NewSessionState converts a core state view into its JSON form.
func NewSessionState(st timer.State) SessionState {
	out := SessionState{
		Phase:            st.Phase,
		Config:           st.Config,
		ElapsedSeconds:   st.Elapsed.Seconds(),
		ProblemSeconds:   st.Problem.Seconds(),
		RemainingSeconds: st.Remaining.Seconds(),
		OvertimeSeconds:  st.Overtime.Seconds(),
		Paused:           st.Paused,
		TimeUp:           st.TimeUp,
		Focus:            st.Focus,
		BatchMode:        st.BatchMode,
		BatchSelection:   st.BatchSelection,
		Graded:           st.Graded,
		Questions:        NewQuestionViews(st.Questions),
	}
	return out
}

// NewQuestionViews converts core question states into their JSON form.
func NewQuestionViews(questions []timer.QuestionState) []QuestionView {
	out := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		view := QuestionView{
			Number:       q.Number,
			SolveSeconds: q.SolveTime.Seconds(),
			Answer:       q.Answer,
			Attempts:     q.Attempts,
			StartSeconds: q.StartTime.Seconds(),
			Correct:      q.Correct,
			Events:       make([]SolveEventView, 0, len(q.Events)),
		}
		for _, e := range q.Events {
			view.Events = append(view.Events, SolveEventView{
				TimestampSeconds: e.Timestamp.Seconds(),
				DurationSeconds:  e.Duration.Seconds(),
				Answer:           e.Answer,
			})
		}
		out = append(out, view)
	}
	return out
}
