package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mediaflux/hub/internal/models"
)

// Posting hour windows, [start, end) in local time.
var postingWindows = [][2]int{
	{9, 11},
	{13, 15},
	{17, 19},
	{20, 22},
}

// GenerateWeeklySchedule rebuilds the pending task set for the next seven
// days. Existing pending tasks are discarded first so regeneration is safe to
// run at any point in the week.
func (s *Scheduler) GenerateWeeklySchedule() {
	ctx := context.Background()
	start := s.now()

	accounts, err := s.ar.ListByStatus(ctx, models.AccountStatusActive)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(accounts) == 0 {
		slog.Info("no active accounts, skipping schedule generation")
		return
	}

	folders, err := s.fr.ListActive(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(folders) == 0 {
		slog.Warn("no active content folders, skipping schedule generation")
		return
	}

	if n, err := s.tr.DeletePending(ctx); err != nil {
		slog.Info(err.Error())
		return
	} else if n > 0 {
		slog.Info("cleared pending tasks before regeneration", "count", n)
	}

	total := 0
	for _, acc := range accounts {
		tasks, err := s.planAccountWeek(ctx, acc, folders, start)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		n, err := s.tr.CreateMany(ctx, tasks)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		total += n
	}

	s.markGeneration(start)
	s.addScheduled(int64(total))
	slog.Info("weekly schedule generated", "accounts", len(accounts), "tasks", total)
	s.logEvent("info", "scheduler", fmt.Sprintf("generated %d tasks for %d accounts", total, len(accounts)), "", "")
}

// planAccountWeek lays out one account's posts for the seven days starting
// today, honoring the minimum inter-post spacing within each day.
func (s *Scheduler) planAccountWeek(ctx context.Context, acc *models.Account, folders []*models.ContentFolder, start time.Time) ([]*models.PostTask, error) {
	var tasks []*models.PostTask

	for day := 0; day < 7; day++ {
		date := start.AddDate(0, 0, day)
		count := s.dailyPostCount(acc.DailyLimit, date.Weekday())

		times := s.planDayTimes(date, count, start)
		for _, at := range times {
			folder := folders[s.rng.Intn(len(folders))]

			mediaPath, err := s.content.PickUnusedMedia(ctx, folder.ID, acc.ID)
			if err != nil {
				return nil, err
			}
			if mediaPath == "" {
				continue
			}

			id, err := gonanoid.New()
			if err != nil {
				return nil, err
			}

			tasks = append(tasks, &models.PostTask{
				ID:               "task_" + id,
				AccountID:        acc.ID,
				FolderID:         folder.ID,
				MediaPath:        mediaPath,
				GeneratedCaption: s.content.GenerateCaption(folder.Category, mediaPath),
				ScheduledTime:    at,
				Status:           models.TaskStatusPending,
				MaxAttempts:      models.DefaultMaxAttempts,
			})
		}
	}

	return tasks, nil
}

// dailyPostCount varies the per-day volume so the week does not look
// machine-regular: lighter on weekends, fuller on Monday and Thursday, and a
// coin flip of one post on ordinary days. The base is the account quota
// clamped by the global per-account ceiling.
func (s *Scheduler) dailyPostCount(quota int, weekday time.Weekday) int {
	if s.cfg.MaxDailyPostsPerAccount > 0 && quota > s.cfg.MaxDailyPostsPerAccount {
		quota = s.cfg.MaxDailyPostsPerAccount
	}
	switch weekday {
	case time.Saturday, time.Sunday:
		n := quota * 7 / 10
		if n < 1 {
			n = 1
		}
		return n
	case time.Monday, time.Thursday:
		n := quota * 12 / 10
		if n > quota {
			n = quota
		}
		return n
	default:
		if quota <= 1 {
			return quota
		}
		return quota - 1 + s.rng.Intn(2)
	}
}

// planDayTimes picks a jittered slot per post inside the posting windows,
// then walks the sorted list pushing each slot forward until it clears the
// minimum spacing. Slots already in the past are dropped.
func (s *Scheduler) planDayTimes(date time.Time, count int, notBefore time.Time) []time.Time {
	minDelay := s.policy.MinDelay()

	times := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		window := postingWindows[s.rng.Intn(len(postingWindows))]
		hour := window[0] + s.rng.Intn(window[1]-window[0])
		minute := s.rng.Intn(60)
		second := s.rng.Intn(60)

		at := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, second, 0, date.Location())
		times = append(times, s.policy.JitterTime(at))
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	for i := 1; i < len(times); i++ {
		earliest := times[i-1].Add(minDelay)
		if times[i].Before(earliest) {
			times[i] = earliest
		}
	}

	kept := times[:0]
	for _, at := range times {
		if at.After(notBefore) {
			kept = append(kept, at)
		}
	}
	return kept
}

func (s *Scheduler) addScheduled(n int64) {
	if n != 0 {
		atomic.AddInt64(&s.postsScheduled, n)
	}
}
