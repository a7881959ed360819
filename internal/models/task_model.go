package models

import "time"

// TaskStatus transitions are monotonic:
// pending -> processing -> completed | failed, with processing -> pending
// only through an explicit reschedule.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

type PostTask struct {
	ID               string     `db:"id" json:"id"`
	AccountID        string     `db:"account_id" json:"account_id"`
	FolderID         string     `db:"folder_id" json:"folder_id"`
	MediaPath        string     `db:"media_path" json:"media_path"`
	GeneratedCaption string     `db:"generated_caption" json:"generated_caption"`
	ScheduledTime    time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Status           TaskStatus `db:"status" json:"status"`
	Attempts         int        `db:"attempts" json:"attempts"`
	MaxAttempts      int        `db:"max_attempts" json:"max_attempts"`
	MediaID          string     `db:"media_id" json:"media_id"`
	InstagramURL     string     `db:"instagram_url" json:"instagram_url"`
	ErrorMessage     string     `db:"error_message" json:"error_message"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

const DefaultMaxAttempts = 3
