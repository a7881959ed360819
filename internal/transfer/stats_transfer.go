package transfer

import "time"

type SchedulerStats struct {
	IsRunning              bool       `json:"is_running"`
	PostsScheduled         int64      `json:"posts_scheduled"`
	PostsCompleted         int64      `json:"posts_completed"`
	PostsFailed            int64      `json:"posts_failed"`
	LastScheduleGeneration *time.Time `json:"last_schedule_generation"`
}

type ProxyStats struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	Assigned    int            `json:"assigned"`
	Available   int            `json:"available"`
	Utilization float64        `json:"utilization"`
	Countries   map[string]int `json:"countries"`
}

type ContentStats struct {
	TotalFolders  int            `json:"total_folders"`
	ActiveFolders int            `json:"active_folders"`
	TotalMedia    int            `json:"total_media"`
	UsedMedia     int            `json:"used_media"`
	Categories    map[string]int `json:"categories"`
}

type AccountCreation struct {
	Username           string `json:"username"`
	AccessToken        string `json:"access_token"`
	InstagramAccountID string `json:"instagram_account_id"`
	AccountAgeDays     int    `json:"account_age_days"`
}

type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
