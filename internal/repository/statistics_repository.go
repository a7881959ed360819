package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

type StatisticsRepository interface {
	GetByTaskID(ctx context.Context, taskID string) (*models.PostStatistics, error)
	Upsert(ctx context.Context, s *models.PostStatistics) error
}

type statisticsRepository struct {
	db *sql.DB
}

func NewStatisticsRepository(db *sql.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) GetByTaskID(ctx context.Context, taskID string) (*models.PostStatistics, error) {
	query := `SELECT id, task_id, impressions, reach, likes, comments, shares, saves, profile_visits, follows, updated_at
		FROM post_statistics WHERE task_id = $1`
	var s models.PostStatistics
	err := r.db.QueryRowContext(ctx, query, taskID).Scan(&s.ID, &s.TaskID, &s.Impressions,
		&s.Reach, &s.Likes, &s.Comments, &s.Shares, &s.Saves, &s.ProfileVisits, &s.Follows, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &s, nil
}

func (r *statisticsRepository) Upsert(ctx context.Context, s *models.PostStatistics) error {
	query := `
		INSERT INTO post_statistics (task_id, impressions, reach, likes, comments, shares, saves, profile_visits, follows, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (task_id) DO UPDATE
		SET impressions = EXCLUDED.impressions,
			reach = EXCLUDED.reach,
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			saves = EXCLUDED.saves,
			profile_visits = EXCLUDED.profile_visits,
			follows = EXCLUDED.follows,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, s.TaskID, s.Impressions, s.Reach, s.Likes,
		s.Comments, s.Shares, s.Saves, s.ProfileVisits, s.Follows, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
