package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfg "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/antiban"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/queue"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/service"
)

type rescheduleCall struct {
	id     string
	at     time.Time
	reason string
}

type fakeTaskRepo struct {
	repository.TaskRepository

	tasks       map[string]*models.PostTask
	ready       []*models.PostTask
	claimWins   map[string]bool
	attempts    map[string]int
	getErr      error
	attemptsErr error
	rescheduled []rescheduleCall
	failed      map[string]string
	completed   map[string]string
	requeued    int64
	created     []*models.PostTask
	pendingGone bool
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, id string) (*models.PostTask, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.tasks[id], nil
}

func (f *fakeTaskRepo) ListReady(ctx context.Context, now time.Time, limit int) ([]*models.PostTask, error) {
	if len(f.ready) > limit {
		return f.ready[:limit], nil
	}
	return f.ready, nil
}

func (f *fakeTaskRepo) Claim(ctx context.Context, id string) (bool, error) {
	return f.claimWins[id], nil
}

func (f *fakeTaskRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if f.attemptsErr != nil {
		return 0, f.attemptsErr
	}
	if f.attempts == nil {
		f.attempts = map[string]int{}
	}
	f.attempts[id]++
	return f.attempts[id], nil
}

func (f *fakeTaskRepo) MarkCompleted(ctx context.Context, id, mediaID, instagramURL string) error {
	if f.completed == nil {
		f.completed = map[string]string{}
	}
	f.completed[id] = mediaID
	return nil
}

func (f *fakeTaskRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = errorMessage
	return nil
}

func (f *fakeTaskRepo) Reschedule(ctx context.Context, id string, newTime time.Time, reason string) error {
	f.rescheduled = append(f.rescheduled, rescheduleCall{id: id, at: newTime, reason: reason})
	return nil
}

func (f *fakeTaskRepo) RequeueProcessing(ctx context.Context) (int64, error) {
	return f.requeued, nil
}

func (f *fakeTaskRepo) DeletePending(ctx context.Context) (int64, error) {
	f.pendingGone = true
	return 0, nil
}

func (f *fakeTaskRepo) CreateMany(ctx context.Context, tasks []*models.PostTask) (int, error) {
	f.created = append(f.created, tasks...)
	return len(tasks), nil
}

type fakeAccountRepo struct {
	repository.AccountRepository

	accounts map[string]*models.Account
	posted   []string
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return f.accounts[id], nil
}

func (f *fakeAccountRepo) ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error) {
	var out []*models.Account
	for _, acc := range f.accounts {
		if acc.Status == status {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) RecordPost(ctx context.Context, id string, postedAt time.Time) error {
	f.posted = append(f.posted, id)
	return nil
}

type fakeFolderRepo struct {
	repository.FolderRepository

	active []*models.ContentFolder
	used   []string
}

func (f *fakeFolderRepo) ListActive(ctx context.Context) ([]*models.ContentFolder, error) {
	return f.active, nil
}

func (f *fakeFolderRepo) IncrementUsed(ctx context.Context, id string) error {
	f.used = append(f.used, id)
	return nil
}

type fakeLogRepo struct {
	repository.SystemLogRepository
}

func (f *fakeLogRepo) Insert(ctx context.Context, entry *models.SystemLog) error {
	return nil
}

type fakeContentService struct {
	service.ContentService

	mediaPath string
	valid     bool
	uploadURL string
	uploadErr error
}

func (f *fakeContentService) PickUnusedMedia(ctx context.Context, folderID, accountID string) (string, error) {
	return f.mediaPath, nil
}

func (f *fakeContentService) GenerateCaption(category, mediaPath string) string {
	return "caption for " + mediaPath
}

func (f *fakeContentService) ValidateMediaFile(path string) (bool, string) {
	if f.valid {
		return true, "OK"
	}
	return false, "unsupported format"
}

func (f *fakeContentService) UploadToPublicStorage(ctx context.Context, mediaPath string) (string, error) {
	return f.uploadURL, f.uploadErr
}

type fakeInstagramService struct {
	service.InstagramService

	mediaID string
	err     error
	calls   int
}

func (f *fakeInstagramService) UploadReel(ctx context.Context, acc *models.Account, videoURL, caption string) (string, error) {
	f.calls++
	return f.mediaID, f.err
}

type schedulerFixture struct {
	sched    *Scheduler
	tr       *fakeTaskRepo
	ar       *fakeAccountRepo
	fr       *fakeFolderRepo
	content  *fakeContentService
	ig       *fakeInstagramService
	enqueued []string
	now      time.Time
}

func newFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	fix := &schedulerFixture{
		tr:      &fakeTaskRepo{tasks: map[string]*models.PostTask{}, claimWins: map[string]bool{}},
		ar:      &fakeAccountRepo{accounts: map[string]*models.Account{}},
		fr:      &fakeFolderRepo{},
		content: &fakeContentService{valid: true, uploadURL: "https://cdn.example.com/a.mp4"},
		ig:      &fakeInstagramService{mediaID: "media_1"},
		now:     time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC), // a Tuesday
	}

	rng := rand.New(rand.NewSource(11))
	policy := antiban.NewPolicy(30*time.Minute, rng, func() time.Time { return fix.now })

	config := cfg.Config{UploadTimeout: 300, MaxDailyPostsPerAccount: 8}
	fix.sched = NewScheduler(config, fix.ar, fix.tr, fix.fr, nil, &fakeLogRepo{},
		fix.content, nil, fix.ig, policy, nil, rng)
	fix.sched.now = func() time.Time { return fix.now }
	fix.sched.sleep = func(d time.Duration) {}
	fix.sched.enqueue = func(payload queue.PublishPayload) error {
		fix.enqueued = append(fix.enqueued, payload.TaskID)
		return nil
	}
	return fix
}

func activeAccount(id string) *models.Account {
	return &models.Account{
		ID:         id,
		Username:   "user_" + id,
		Status:     models.AccountStatusActive,
		DailyLimit: 5,
	}
}

func pendingTask(id, accountID string) *models.PostTask {
	return &models.PostTask{
		ID:          id,
		AccountID:   accountID,
		FolderID:    "folder_1",
		MediaPath:   "/content/clips/a.mp4",
		Status:      models.TaskStatusPending,
		MaxAttempts: models.DefaultMaxAttempts,
	}
}

func TestDrainQueueEnqueuesOnlyClaimedTasks(t *testing.T) {
	fix := newFixture(t)

	t1 := pendingTask("task_1", "acc_1")
	t2 := pendingTask("task_2", "acc_1")
	fix.tr.ready = []*models.PostTask{t1, t2}
	fix.tr.claimWins["task_1"] = true
	// task_2 lost the claim race to another drain.

	fix.sched.DrainQueue()

	require.Equal(t, []string{"task_1"}, fix.enqueued)
}

func TestDrainQueueRespectsBatchLimit(t *testing.T) {
	fix := newFixture(t)

	for i := 0; i < 15; i++ {
		task := pendingTask(string(rune('a'+i)), "acc_1")
		fix.tr.ready = append(fix.tr.ready, task)
		fix.tr.claimWins[task.ID] = true
	}

	fix.sched.DrainQueue()

	require.Len(t, fix.enqueued, drainBatchLimit)
}

func TestProcessTaskSuccess(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	fix.tr.tasks["task_1"] = pendingTask("task_1", "acc_1")

	require.NoError(t, fix.sched.ProcessTask("task_1"))

	require.Equal(t, "media_1", fix.tr.completed["task_1"])
	require.Equal(t, []string{"acc_1"}, fix.ar.posted)
	require.Equal(t, []string{"folder_1"}, fix.fr.used)
	require.Equal(t, 1, fix.tr.attempts["task_1"])
	require.Equal(t, int64(1), fix.sched.Stats().PostsCompleted)
}

func TestProcessTaskPolicyDenialReschedulesWithoutAttempt(t *testing.T) {
	fix := newFixture(t)

	acc := activeAccount("acc_1")
	acc.Status = models.AccountStatusLimited
	fix.ar.accounts["acc_1"] = acc
	fix.tr.tasks["task_1"] = pendingTask("task_1", "acc_1")

	require.NoError(t, fix.sched.ProcessTask("task_1"))

	require.Len(t, fix.tr.rescheduled, 1)
	require.Equal(t, fix.now.Add(policyRetryDelay), fix.tr.rescheduled[0].at)
	require.Contains(t, fix.tr.rescheduled[0].reason, "limited")
	require.Zero(t, fix.tr.attempts["task_1"], "policy denial must not consume an attempt")
	require.Zero(t, fix.ig.calls)
}

func TestProcessTaskMissingAccountFailsTask(t *testing.T) {
	fix := newFixture(t)

	fix.tr.tasks["task_1"] = pendingTask("task_1", "acc_gone")

	require.NoError(t, fix.sched.ProcessTask("task_1"))

	require.Contains(t, fix.tr.failed["task_1"], "account not found")
	require.Equal(t, int64(1), fix.sched.Stats().PostsFailed)
}

func TestProcessTaskUnusableMediaFailsTask(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	fix.tr.tasks["task_1"] = pendingTask("task_1", "acc_1")
	fix.content.valid = false

	require.NoError(t, fix.sched.ProcessTask("task_1"))

	require.Contains(t, fix.tr.failed["task_1"], "media unusable")
	require.Zero(t, fix.ig.calls)
}

func TestProcessTaskTransientFailureReschedules(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	task := pendingTask("task_1", "acc_1")
	task.Attempts = 1
	fix.tr.tasks["task_1"] = task
	fix.tr.attempts = map[string]int{"task_1": 1}
	fix.ig.err = errors.New("connection reset")

	require.NoError(t, fix.sched.ProcessTask("task_1"))

	require.Len(t, fix.tr.rescheduled, 1)
	require.Equal(t, fix.now.Add(transientRetryDelay), fix.tr.rescheduled[0].at)
	require.Empty(t, fix.tr.failed)
}

func TestProcessTaskExhaustedAttemptsFailsTask(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	task := pendingTask("task_1", "acc_1")
	fix.tr.tasks["task_1"] = task
	fix.tr.attempts = map[string]int{"task_1": task.MaxAttempts - 1}
	fix.ig.err = errors.New("connection reset")

	require.NoError(t, fix.sched.ProcessTask("task_1"))

	require.Empty(t, fix.tr.rescheduled)
	require.Contains(t, fix.tr.failed["task_1"], "connection reset")
}

func TestGenerateWeeklySchedulePersistsTasks(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	fix.fr.active = []*models.ContentFolder{
		{ID: "folder_1", Name: "clips", Category: models.CategoryMotivation, IsActive: true},
	}
	fix.content.mediaPath = "/content/clips/a.mp4"

	fix.sched.GenerateWeeklySchedule()

	require.True(t, fix.tr.pendingGone, "pending tasks must be cleared before regeneration")
	require.NotEmpty(t, fix.tr.created)
	for _, task := range fix.tr.created {
		require.Equal(t, "acc_1", task.AccountID)
		require.Equal(t, models.TaskStatusPending, task.Status)
		require.True(t, task.ScheduledTime.After(fix.now), "task %s scheduled in the past", task.ID)
		require.NotEmpty(t, task.GeneratedCaption)
	}
	require.NotNil(t, fix.sched.Stats().LastScheduleGeneration)
}

func TestPlanDayTimesEnforcesMinimumSpacing(t *testing.T) {
	fix := newFixture(t)
	minDelay := fix.sched.policy.MinDelay()

	date := fix.now.AddDate(0, 0, 1)
	for run := 0; run < 20; run++ {
		times := fix.sched.planDayTimes(date, 5, fix.now)
		for i := 1; i < len(times); i++ {
			require.True(t, !times[i].Before(times[i-1].Add(minDelay)),
				"slots %s and %s closer than %s", times[i-1], times[i], minDelay)
		}
		for _, at := range times {
			require.True(t, at.After(fix.now))
		}
	}
}

func TestDailyPostCount(t *testing.T) {
	fix := newFixture(t)

	require.Equal(t, 3, fix.sched.dailyPostCount(5, time.Saturday))
	require.Equal(t, 3, fix.sched.dailyPostCount(5, time.Sunday))
	require.Equal(t, 1, fix.sched.dailyPostCount(1, time.Saturday))
	require.Equal(t, 5, fix.sched.dailyPostCount(5, time.Monday))
	require.Equal(t, 5, fix.sched.dailyPostCount(5, time.Thursday))

	for i := 0; i < 50; i++ {
		n := fix.sched.dailyPostCount(5, time.Wednesday)
		require.GreaterOrEqual(t, n, 4)
		require.LessOrEqual(t, n, 5)
	}
}

func TestDailyPostCountClampedByGlobalMax(t *testing.T) {
	fix := newFixture(t)

	// Premium-tier quota 12 against a global ceiling of 8.
	require.Equal(t, 8, fix.sched.dailyPostCount(12, time.Monday))
	require.Equal(t, 5, fix.sched.dailyPostCount(12, time.Saturday)) // 8*0.7
	for i := 0; i < 50; i++ {
		n := fix.sched.dailyPostCount(12, time.Wednesday)
		require.GreaterOrEqual(t, n, 7)
		require.LessOrEqual(t, n, 8)
	}
}

func TestStartGeneratesScheduleImmediately(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	fix.fr.active = []*models.ContentFolder{
		{ID: "folder_1", Name: "clips", Category: models.CategoryMotivation, IsActive: true},
	}
	fix.content.mediaPath = "/content/clips/a.mp4"

	require.NoError(t, fix.sched.Start())
	defer fix.sched.Stop()

	require.NotEmpty(t, fix.tr.created, "Start must fill the week in progress, not wait for the Sunday timer")
}

func TestProcessTaskStorageErrorRequeuesTask(t *testing.T) {
	fix := newFixture(t)

	fix.tr.getErr = errors.New("connection refused")

	require.Error(t, fix.sched.ProcessTask("task_1"))
	require.Len(t, fix.tr.rescheduled, 1)
	require.Equal(t, "task_1", fix.tr.rescheduled[0].id)
	require.False(t, fix.tr.rescheduled[0].at.After(fix.now), "requeue must make the task due immediately")
}

func TestProcessTaskAttemptsStorageErrorRequeuesTask(t *testing.T) {
	fix := newFixture(t)

	fix.ar.accounts["acc_1"] = activeAccount("acc_1")
	fix.tr.tasks["task_1"] = pendingTask("task_1", "acc_1")
	fix.tr.attemptsErr = errors.New("connection refused")

	require.Error(t, fix.sched.ProcessTask("task_1"))
	require.Len(t, fix.tr.rescheduled, 1)
	require.Zero(t, fix.ig.calls)
}

func TestTaskTimeoutMatchesUploadTimeout(t *testing.T) {
	fix := newFixture(t)

	require.Equal(t, 300*time.Second, fix.sched.taskTimeout())
}

func TestPlanDayTimesRandomizesSeconds(t *testing.T) {
	fix := newFixture(t)

	date := fix.now.AddDate(0, 0, 1)
	seconds := map[int]bool{}
	for run := 0; run < 20; run++ {
		for _, at := range fix.sched.planDayTimes(date, 5, fix.now) {
			seconds[at.Second()] = true
		}
	}
	require.Greater(t, len(seconds), 1, "slot seconds must not follow a fixed pattern")
}

func TestStartStopIdempotent(t *testing.T) {
	fix := newFixture(t)

	require.NoError(t, fix.sched.Start())
	require.True(t, fix.sched.IsRunning())
	require.NoError(t, fix.sched.Start(), "second Start must be a no-op")

	fix.sched.Stop()
	require.False(t, fix.sched.IsRunning())
	fix.sched.Stop() // second Stop is harmless
}
