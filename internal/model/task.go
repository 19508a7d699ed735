package model

import (
	"encoding/json"
	"time"
)

// SnapshotTask is queued on persist_snapshots_queue for the snapshot worker.
// Tombstone tasks delete the durable row instead of upserting it.
type SnapshotTask struct {
	OwnerID   string          `json:"owner_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SavedAt   time.Time       `json:"saved_at"`
	Tombstone bool            `json:"tombstone,omitempty"`
}

// ArchiveTask is queued on archive_results_queue when an exam finishes.
// The worker bulk-inserts these into session_archives.
type ArchiveTask struct {
	OwnerID        string    `json:"owner_id"`
	ExamName       string    `json:"exam_name"`
	TotalMinutes   float64   `json:"total_minutes"`
	Unlimited      bool      `json:"unlimited"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	TimeUp         bool      `json:"time_up"`
	QuestionCount  int       `json:"question_count"`
	AttemptedCount int       `json:"attempted_count"`
	FinishedAt     time.Time `json:"finished_at"`
}
