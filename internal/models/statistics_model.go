package models

import "time"

type PostStatistics struct {
	ID            int64     `db:"id" json:"id"`
	TaskID        string    `db:"task_id" json:"task_id"`
	Impressions   int       `db:"impressions" json:"impressions"`
	Reach         int       `db:"reach" json:"reach"`
	Likes         int       `db:"likes" json:"likes"`
	Comments      int       `db:"comments" json:"comments"`
	Shares        int       `db:"shares" json:"shares"`
	Saves         int       `db:"saves" json:"saves"`
	ProfileVisits int       `db:"profile_visits" json:"profile_visits"`
	Follows       int       `db:"follows" json:"follows"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
