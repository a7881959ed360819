package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

const (
	statsLookback   = 7 * 24 * time.Hour
	logRetention    = 30 * 24 * time.Hour
	failedRetention = 7 * 24 * time.Hour
)

// ResetDailyCounters zeroes every account's daily post count. Runs just after
// midnight.
func (s *Scheduler) ResetDailyCounters() {
	n, err := s.ar.ResetDailyCounters(context.Background())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	slog.Info("daily post counters reset", "accounts", n)
	s.logEvent("info", "maintenance", "daily post counters reset", "", "")
}

// RefreshStatistics pulls engagement metrics for recently completed posts.
// Fetches are spaced by a short randomized pause so the metric reads look
// nothing like a batch job to the remote platform.
func (s *Scheduler) RefreshStatistics() {
	ctx := context.Background()

	tasks, err := s.tr.ListCompletedSince(ctx, s.now().Add(-statsLookback))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	refreshed := 0
	for i, task := range tasks {
		if task.MediaID == "" {
			continue
		}

		acc, err := s.ar.GetByID(ctx, task.AccountID)
		if err != nil || acc == nil {
			continue
		}

		insights, err := s.ig.GetMediaInsights(ctx, task.MediaID, acc)
		if err != nil {
			slog.Info(err.Error())
			continue
		}

		stats := &models.PostStatistics{
			TaskID:        task.ID,
			Impressions:   insights.Impressions,
			Reach:         insights.Reach,
			Likes:         insights.Likes,
			Comments:      insights.Comments,
			Shares:        insights.Shares,
			Saves:         insights.Saves,
			ProfileVisits: insights.ProfileVisits,
			Follows:       insights.Follows,
		}
		if err := s.sr.Upsert(ctx, stats); err != nil {
			slog.Info(err.Error())
			continue
		}
		refreshed++

		if i < len(tasks)-1 {
			s.sleep(time.Second + time.Duration(s.rng.Int63n(int64(2*time.Second))))
		}
	}

	if refreshed > 0 {
		slog.Info("post statistics refreshed", "posts", refreshed)
	}
}

// CleanupOldData drops aged system log rows and stale failed tasks.
func (s *Scheduler) CleanupOldData() {
	ctx := context.Background()
	now := s.now()

	logs, err := s.lr.DeleteOlderThan(ctx, now.Add(-logRetention))
	if err != nil {
		slog.Info(err.Error())
	}

	failed, err := s.tr.DeleteFailedBefore(ctx, now.Add(-failedRetention))
	if err != nil {
		slog.Info(err.Error())
	}

	slog.Info("cleanup finished", "logs_removed", logs, "failed_tasks_removed", failed)
	s.logEvent("info", "maintenance", "cleanup finished", "", "")
}

// RescanContent refreshes the folder inventory from disk.
func (s *Scheduler) RescanContent() {
	folders, err := s.content.ScanFolders(context.Background())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	slog.Info("content rescan finished", "folders", len(folders))
}
