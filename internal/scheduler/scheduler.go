package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron"

	cfg "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/antiban"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/queue"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/service"
	"github.com/mediaflux/hub/internal/transfer"
)

// Timer cadences. The cron specs use the six-field form with a seconds column.
const (
	weeklyGenerationSpec = "0 0 0 * * 0"    // Sunday midnight
	drainSpec            = "@every 2m0s"
	dailyResetSpec       = "0 1 0 * * *"    // 00:01
	statsRefreshSpec     = "@every 30m0s"
	cleanupSpec          = "0 0 2 * * *"    // 02:00
	rescanSpec           = "@every 6h0m0s"
)

const drainBatchLimit = 10

type Scheduler struct {
	cfg     cfg.Config
	ar      repository.AccountRepository
	tr      repository.TaskRepository
	fr      repository.FolderRepository
	sr      repository.StatisticsRepository
	lr      repository.SystemLogRepository
	content service.ContentService
	proxies service.ProxyService
	ig      service.InstagramService
	policy  *antiban.Policy

	rng *rand.Rand
	now func() time.Time

	enqueue func(payload queue.PublishPayload) error
	sleep   func(d time.Duration)

	mu      sync.Mutex
	running bool
	cron    *cron.Cron

	postsScheduled int64
	postsCompleted int64
	postsFailed    int64

	genMu          sync.Mutex
	lastGeneration *time.Time
}

func NewScheduler(
	config cfg.Config,
	ar repository.AccountRepository,
	tr repository.TaskRepository,
	fr repository.FolderRepository,
	sr repository.StatisticsRepository,
	lr repository.SystemLogRepository,
	content service.ContentService,
	proxies service.ProxyService,
	ig service.InstagramService,
	policy *antiban.Policy,
	asynqClient *asynq.Client,
	rng *rand.Rand) *Scheduler {
	return &Scheduler{
		cfg:     config,
		ar:      ar,
		tr:      tr,
		fr:      fr,
		sr:      sr,
		lr:      lr,
		content: content,
		proxies: proxies,
		ig:      ig,
		policy:  policy,
		rng:     rng,
		now:     time.Now,
		enqueue: func(payload queue.PublishPayload) error {
			return queue.EnqueuePublish(asynqClient, payload)
		},
		sleep: time.Sleep,
	}
}

// Start installs the periodic timers and recovers tasks left mid-flight by a
// previous run. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Info("scheduler already running")
		return nil
	}

	if n, err := s.tr.RequeueProcessing(context.Background()); err != nil {
		slog.Info(err.Error())
	} else if n > 0 {
		slog.Info("requeued tasks left in processing state", "count", n)
	}

	c := cron.New()
	c.AddFunc(weeklyGenerationSpec, func() { s.GenerateWeeklySchedule() })
	c.AddFunc(drainSpec, func() { s.DrainQueue() })
	c.AddFunc(dailyResetSpec, func() { s.ResetDailyCounters() })
	c.AddFunc(statsRefreshSpec, func() { s.RefreshStatistics() })
	c.AddFunc(cleanupSpec, func() { s.CleanupOldData() })
	c.AddFunc(rescanSpec, func() { s.RescanContent() })
	c.Start()

	s.cron = c
	s.running = true
	slog.Info("scheduler started")
	s.logEvent("info", "scheduler", "scheduler started", "", "")

	// The week already in progress would otherwise stay empty until the
	// Sunday timer fires.
	s.GenerateWeeklySchedule()

	return nil
}

// Stop halts the timers. In-flight publish tasks finish on their own; the
// startup recovery path handles anything cut off mid-publish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.cron = nil
	s.running = false
	slog.Info("scheduler stopped")
	s.logEvent("info", "scheduler", "scheduler stopped", "", "")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Stats() *transfer.SchedulerStats {
	s.genMu.Lock()
	lastGen := s.lastGeneration
	s.genMu.Unlock()

	return &transfer.SchedulerStats{
		IsRunning:              s.IsRunning(),
		PostsScheduled:         atomic.LoadInt64(&s.postsScheduled),
		PostsCompleted:         atomic.LoadInt64(&s.postsCompleted),
		PostsFailed:            atomic.LoadInt64(&s.postsFailed),
		LastScheduleGeneration: lastGen,
	}
}

func (s *Scheduler) markGeneration(at time.Time) {
	s.genMu.Lock()
	s.lastGeneration = &at
	s.genMu.Unlock()
}

// logEvent records an operator-visible event row. Logging failures only hit
// the process log, never the caller.
func (s *Scheduler) logEvent(level, component, message, accountID, taskID string) {
	entry := &models.SystemLog{
		Level:     level,
		Message:   message,
		Component: component,
		AccountID: accountID,
		TaskID:    taskID,
	}
	if err := s.lr.Insert(context.Background(), entry); err != nil {
		slog.Info(err.Error())
	}
}
