package websocket

import "github.com/lapdesk/lapdesk-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionLap         Action = "lap"
	ActionBatchRecord Action = "batch_record"
	ActionTogglePause Action = "toggle_pause"
	ActionPing        Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// LapRequest is sent by the client to record a lap on one question.
type LapRequest struct {
	Action   Action  `json:"action"`
	Question int     `json:"question"`
	Answer   *string `json:"answer"`
}

// BatchRecordRequest is sent by the client to split the accumulated
// interval across the current batch selection.
type BatchRecordRequest struct {
	Action Action `json:"action"`
}

// TogglePauseRequest is sent by the client to pause or resume the clock.
type TogglePauseRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventTimeUp Event = "time_up"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// StateResponse pushes the full session view. Sent on a fixed cadence and
// after every accepted action.
type StateResponse struct {
	Event Event              `json:"event"`
	State model.SessionState `json:"state"`
}

// TimeUpResponse announces that the time budget ran out. Sent at most once
// per exam run.
type TimeUpResponse struct {
	Event Event              `json:"event"`
	State model.SessionState `json:"state"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
