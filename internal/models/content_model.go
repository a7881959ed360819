package models

import "time"

type ContentFolder struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Path        string    `db:"path" json:"path"`
	TotalMedia  int       `db:"total_media" json:"total_media"`
	UsedMedia   int       `db:"used_media" json:"used_media"`
	Category    string    `db:"category" json:"category"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const (
	CategoryMotivation    = "motivation"
	CategoryLifestyle     = "lifestyle"
	CategoryBusiness      = "business"
	CategoryEntertainment = "entertainment"
)
