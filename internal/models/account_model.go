package models

import "time"

// AccountStatus is the closed set of account lifecycle states.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusLimited AccountStatus = "limited"
	AccountStatusBanned  AccountStatus = "banned"
	AccountStatusError   AccountStatus = "error"
)

type Account struct {
	ID                 string        `db:"id" json:"id"`
	Username           string        `db:"username" json:"username"`
	AccessToken        string        `db:"access_token" json:"-"` // AES-GCM encrypted
	InstagramAccountID string        `db:"instagram_account_id" json:"instagram_account_id"`
	ProxyURL           string        `db:"proxy_url" json:"proxy_url"`
	UserAgent          string        `db:"user_agent" json:"user_agent"`
	DailyLimit         int           `db:"daily_limit" json:"daily_limit"`
	CurrentDailyPosts  int           `db:"current_daily_posts" json:"current_daily_posts"`
	Status             AccountStatus `db:"status" json:"status"`
	LastPostTime       *time.Time    `db:"last_post_time" json:"last_post_time"`
	LastActivity       *time.Time    `db:"last_activity" json:"last_activity"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}
