package models

import "time"

type SystemLog struct {
	ID        int64     `db:"id" json:"id"`
	Level     string    `db:"level" json:"level"`
	Message   string    `db:"message" json:"message"`
	Component string    `db:"component" json:"component"`
	AccountID string    `db:"account_id" json:"account_id"`
	TaskID    string    `db:"task_id" json:"task_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
