package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

type SystemLogRepository interface {
	Insert(ctx context.Context, entry *models.SystemLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.SystemLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type systemLogRepository struct {
	db *sql.DB
}

func NewSystemLogRepository(db *sql.DB) SystemLogRepository {
	return &systemLogRepository{db: db}
}

func (r *systemLogRepository) Insert(ctx context.Context, entry *models.SystemLog) error {
	query := `
		INSERT INTO system_logs (level, message, component, account_id, task_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, entry.Level, entry.Message, entry.Component, entry.AccountID, entry.TaskID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *systemLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.SystemLog, error) {
	query := `SELECT id, level, message, component, account_id, task_id, created_at
		FROM system_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SystemLog
	for rows.Next() {
		var e models.SystemLog
		err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.Component, &e.AccountID, &e.TaskID, &e.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *systemLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM system_logs WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
