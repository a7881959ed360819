package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mediaflux/hub/internal/queue"
	"github.com/mediaflux/hub/internal/service"
)

const (
	policyRetryDelay    = 30 * time.Minute
	transientRetryDelay = 1 * time.Hour
)

// DrainQueue claims due tasks and hands them to the worker pool. The claim is
// a compare-and-set on the pending status, so two overlapping drains can
// never enqueue the same task twice.
func (s *Scheduler) DrainQueue() {
	ctx := context.Background()

	tasks, err := s.tr.ListReady(ctx, s.now(), drainBatchLimit)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, task := range tasks {
		claimed, err := s.tr.Claim(ctx, task.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if !claimed {
			continue
		}

		if err := s.enqueue(queue.PublishPayload{TaskID: task.ID}); err != nil {
			slog.Info(err.Error())
			// Put the task back so the next drain retries it.
			if rerr := s.tr.Reschedule(ctx, task.ID, task.ScheduledTime, "enqueue failed"); rerr != nil {
				slog.Info(rerr.Error())
			}
		}
	}
}

// ProcessTask runs one claimed publish task end to end. It implements the
// Processor contract for the worker pool.
//
// Outcome rules: a policy denial reschedules without consuming an attempt; a
// missing account or unusable media fails the task outright; a remote failure
// retries later until the attempt budget runs out.
func (s *Scheduler) ProcessTask(taskID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout())
	defer cancel()

	task, err := s.tr.GetByID(ctx, taskID)
	if err != nil {
		s.requeueOnStorageError(taskID)
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}

	acc, err := s.ar.GetByID(ctx, task.AccountID)
	if err != nil {
		s.requeueOnStorageError(taskID)
		return err
	}
	if acc == nil {
		s.failTask(ctx, taskID, task.AccountID, "account not found")
		return nil
	}

	if ok, reason := s.policy.CanPostNow(acc); !ok {
		slog.Info("post deferred by policy", "task_id", taskID, "username", acc.Username, "reason", reason)
		if err := s.tr.Reschedule(ctx, taskID, s.now().Add(policyRetryDelay), reason); err != nil {
			slog.Info(err.Error())
		}
		return nil
	}

	attempts, err := s.tr.IncrementAttempts(ctx, taskID)
	if err != nil {
		s.requeueOnStorageError(taskID)
		return err
	}

	if valid, reason := s.content.ValidateMediaFile(task.MediaPath); !valid {
		s.failTask(ctx, taskID, acc.ID, "media unusable: "+reason)
		return nil
	}

	videoURL, err := s.content.UploadToPublicStorage(ctx, task.MediaPath)
	if err != nil {
		s.failTask(ctx, taskID, acc.ID, "media upload failed: "+err.Error())
		return nil
	}

	mediaID, err := s.ig.UploadReel(ctx, acc, videoURL, task.GeneratedCaption)
	if err != nil {
		s.handlePublishFailure(ctx, taskID, acc.ID, attempts, task.MaxAttempts, err)
		return nil
	}

	if err := s.tr.MarkCompleted(ctx, taskID, mediaID, service.PostURL(mediaID)); err != nil {
		slog.Info(err.Error())
	}
	if err := s.ar.RecordPost(ctx, acc.ID, s.now()); err != nil {
		slog.Info(err.Error())
	}
	if err := s.fr.IncrementUsed(ctx, task.FolderID); err != nil {
		slog.Info(err.Error())
	}

	atomic.AddInt64(&s.postsCompleted, 1)
	slog.Info("post published", "task_id", taskID, "username", acc.Username, "media_id", mediaID)
	s.logEvent("info", "scheduler", "post published", acc.ID, taskID)
	return nil
}

// handlePublishFailure decides between another attempt and giving up. Remote
// errors that already flipped the account's status still retry here; the
// policy check blocks the retry for as long as the account stays non-active.
func (s *Scheduler) handlePublishFailure(ctx context.Context, taskID, accountID string, attempts, maxAttempts int, err error) {
	if attempts >= maxAttempts {
		s.failTask(ctx, taskID, accountID, err.Error())
		return
	}

	slog.Warn("publish failed, will retry", "task_id", taskID, "attempts", attempts, "err", err)
	if rerr := s.tr.Reschedule(ctx, taskID, s.now().Add(transientRetryDelay), err.Error()); rerr != nil {
		slog.Info(rerr.Error())
	}
	s.logEvent("warning", "scheduler", "publish failed: "+err.Error(), accountID, taskID)
}

func (s *Scheduler) taskTimeout() time.Duration {
	return time.Duration(s.cfg.UploadTimeout) * time.Second
}

// requeueOnStorageError releases a claimed task back to pending so the next
// drain retries it. Without this a database hiccup would strand the task in
// processing until a restart. Uses a fresh context because the per-task one
// may be the thing that failed.
func (s *Scheduler) requeueOnStorageError(taskID string) {
	if err := s.tr.Reschedule(context.Background(), taskID, s.now(), "storage error, requeued"); err != nil {
		slog.Info(err.Error())
	}
}

func (s *Scheduler) failTask(ctx context.Context, taskID, accountID, reason string) {
	slog.Warn("task failed", "task_id", taskID, "reason", reason)
	if err := s.tr.MarkFailed(ctx, taskID, reason); err != nil {
		slog.Info(err.Error())
	}
	atomic.AddInt64(&s.postsFailed, 1)
	s.logEvent("error", "scheduler", "task failed: "+reason, accountID, taskID)
}
