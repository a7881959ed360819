package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.PostTask, error)
	CreateMany(ctx context.Context, tasks []*models.PostTask) (int, error)
	ListReady(ctx context.Context, now time.Time, limit int) ([]*models.PostTask, error)
	ListByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.PostTask, error)
	ListCompletedSince(ctx context.Context, since time.Time) ([]*models.PostTask, error)
	ListMediaUsedByAccount(ctx context.Context, accountID, folderID string) ([]string, error)
	Claim(ctx context.Context, id string) (bool, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	MarkCompleted(ctx context.Context, id, mediaID, instagramURL string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	Reschedule(ctx context.Context, id string, newTime time.Time, reason string) error
	DeletePending(ctx context.Context) (int64, error)
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	RequeueProcessing(ctx context.Context) (int64, error)
	Remove(ctx context.Context, id string) error
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, account_id, folder_id, media_path, generated_caption, scheduled_time,
	status, attempts, max_attempts, media_id, instagram_url, error_message, created_at, completed_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.PostTask, error) {
	var t models.PostTask
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.AccountID, &t.FolderID, &t.MediaPath, &t.GeneratedCaption,
		&t.ScheduledTime, &t.Status, &t.Attempts, &t.MaxAttempts, &t.MediaID,
		&t.InstagramURL, &t.ErrorMessage, &t.CreatedAt, &completedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*models.PostTask, error) {
	query := `SELECT ` + taskColumns + ` FROM post_tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return t, nil
}

// CreateMany persists a generated schedule in one transaction so a failed
// generation never leaves a partial week behind.
func (r *taskRepository) CreateMany(ctx context.Context, tasks []*models.PostTask) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO post_tasks (id, account_id, folder_id, media_path, generated_caption, scheduled_time, status, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, t := range tasks {
		_, err := tx.ExecContext(ctx, query, t.ID, t.AccountID, t.FolderID, t.MediaPath,
			t.GeneratedCaption, t.ScheduledTime, t.Status, t.MaxAttempts)
		if err != nil {
			slog.Info(err.Error())
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return len(tasks), nil
}

func (r *taskRepository) ListReady(ctx context.Context, now time.Time, limit int) ([]*models.PostTask, error) {
	query := `SELECT ` + taskColumns + ` FROM post_tasks
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC
		LIMIT $3`
	return r.queryTasks(ctx, query, models.TaskStatusPending, now, limit)
}

func (r *taskRepository) ListByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.PostTask, error) {
	query := `SELECT ` + taskColumns + ` FROM post_tasks
		WHERE status = $1
		ORDER BY scheduled_time ASC
		LIMIT $2`
	return r.queryTasks(ctx, query, status, limit)
}

func (r *taskRepository) ListCompletedSince(ctx context.Context, since time.Time) ([]*models.PostTask, error) {
	query := `SELECT ` + taskColumns + ` FROM post_tasks
		WHERE status = $1 AND completed_at >= $2 AND media_id <> ''
		ORDER BY completed_at ASC`
	return r.queryTasks(ctx, query, models.TaskStatusCompleted, since)
}

func (r *taskRepository) ListMediaUsedByAccount(ctx context.Context, accountID, folderID string) ([]string, error) {
	query := `SELECT media_path FROM post_tasks
		WHERE account_id = $1 AND folder_id = $2 AND status IN ($3, $4)`
	rows, err := r.db.QueryContext(ctx, query, accountID, folderID,
		models.TaskStatusCompleted, models.TaskStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (r *taskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.PostTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.PostTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Claim flips a pending task to processing. The conditional update is the
// ownership lock: only the caller that sees one affected row may publish.
func (r *taskRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `UPDATE post_tasks SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.TaskStatusProcessing, time.Now(), id, models.TaskStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n == 1, nil
}

func (r *taskRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `UPDATE post_tasks SET attempts = attempts + 1, updated_at = $1 WHERE id = $2 RETURNING attempts`
	var attempts int
	if err := r.db.QueryRowContext(ctx, query, time.Now(), id).Scan(&attempts); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return attempts, nil
}

func (r *taskRepository) MarkCompleted(ctx context.Context, id, mediaID, instagramURL string) error {
	now := time.Now()
	query := `
		UPDATE post_tasks
		SET status = $1, media_id = $2, instagram_url = $3, completed_at = $4, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusCompleted, mediaID, instagramURL, now, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *taskRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `UPDATE post_tasks SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusFailed, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *taskRepository) Reschedule(ctx context.Context, id string, newTime time.Time, reason string) error {
	query := `
		UPDATE post_tasks
		SET status = $1, scheduled_time = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusPending, newTime, reason, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *taskRepository) DeletePending(ctx context.Context) (int64, error) {
	query := `DELETE FROM post_tasks WHERE status = $1`
	res, err := r.db.ExecContext(ctx, query, models.TaskStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *taskRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM post_tasks WHERE status = $1 AND updated_at < $2`
	res, err := r.db.ExecContext(ctx, query, models.TaskStatusFailed, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RequeueProcessing returns tasks stranded in processing by a previous run to
// the pending queue. Called once at startup, before any worker runs.
func (r *taskRepository) RequeueProcessing(ctx context.Context) (int64, error) {
	query := `UPDATE post_tasks SET status = $1, updated_at = $2 WHERE status = $3`
	res, err := r.db.ExecContext(ctx, query, models.TaskStatusPending, time.Now(), models.TaskStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *taskRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM post_tasks WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
