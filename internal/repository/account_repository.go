package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, acc *models.Account) (string, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error)
	SetStatus(ctx context.Context, id string, status models.AccountStatus) error
	SetProxy(ctx context.Context, id, proxyURL string) error
	RecordPost(ctx context.Context, id string, postedAt time.Time) error
	ResetDailyCounters(ctx context.Context) (int64, error)
	Remove(ctx context.Context, id string) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, username, access_token, instagram_account_id, proxy_url, user_agent,
	daily_limit, current_daily_posts, status, last_post_time, last_activity, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var acc models.Account
	var lastPost, lastActivity sql.NullTime
	err := row.Scan(&acc.ID, &acc.Username, &acc.AccessToken, &acc.InstagramAccountID,
		&acc.ProxyURL, &acc.UserAgent, &acc.DailyLimit, &acc.CurrentDailyPosts, &acc.Status,
		&lastPost, &lastActivity, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastPost.Valid {
		acc.LastPostTime = &lastPost.Time
	}
	if lastActivity.Valid {
		acc.LastActivity = &lastActivity.Time
	}
	return &acc, nil
}

func (r *accountRepository) Create(ctx context.Context, acc *models.Account) (string, error) {
	query := `
		INSERT INTO accounts (id, username, access_token, instagram_account_id, proxy_url, user_agent, daily_limit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, acc.ID, acc.Username, acc.AccessToken,
		acc.InstagramAccountID, acc.ProxyURL, acc.UserAgent, acc.DailyLimit, acc.Status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return id, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`
	return r.queryAccounts(ctx, query)
}

func (r *accountRepository) ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE status = $1 ORDER BY created_at`
	return r.queryAccounts(ctx, query, status)
}

func (r *accountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *accountRepository) SetStatus(ctx context.Context, id string, status models.AccountStatus) error {
	query := `UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *accountRepository) SetProxy(ctx context.Context, id, proxyURL string) error {
	query := `UPDATE accounts SET proxy_url = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, proxyURL, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// RecordPost bumps the daily counter and activity timestamps after a
// successful publish.
func (r *accountRepository) RecordPost(ctx context.Context, id string, postedAt time.Time) error {
	query := `
		UPDATE accounts
		SET current_daily_posts = current_daily_posts + 1,
			last_post_time = $1,
			last_activity = $1,
			updated_at = $1
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, postedAt, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *accountRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	query := `UPDATE accounts SET current_daily_posts = 0, updated_at = $1`
	res, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *accountRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
