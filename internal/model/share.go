package model

import (
	"time"

	"github.com/google/uuid"
)

// CreateShareRequest publishes the current session's results under an opaque
// id. Passcode, when set, is required to delete the share later.
type CreateShareRequest struct {
	Title          string `json:"title" binding:"omitempty,max=120"`
	IncludeGrading bool   `json:"include_grading"`
	Passcode       string `json:"passcode" binding:"omitempty,min=4,max=64"`
}

// DeleteShareRequest authorizes deletion of a passcode-protected share.
type DeleteShareRequest struct {
	Passcode string `json:"passcode" binding:"omitempty,max=64"`
}

// SharedResult is the immutable published form of a finished session:
// questions, exam name, total minutes, and whether grading is included.
type SharedResult struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	TotalMinutes   float64        `json:"total_minutes"`
	Unlimited      bool           `json:"unlimited"`
	IncludeGrading bool           `json:"include_grading"`
	CreatedAt      time.Time      `json:"created_at"`
	Questions      []QuestionView `json:"questions"`
}
