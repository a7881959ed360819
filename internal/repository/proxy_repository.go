package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

type ProxyRepository interface {
	GetByURL(ctx context.Context, proxyURL string) (*models.Proxy, error)
	List(ctx context.Context) ([]*models.Proxy, error)
	ListAssignable(ctx context.Context) ([]*models.Proxy, error)
	Upsert(ctx context.Context, p *models.Proxy) (created bool, err error)
	MarkAssigned(ctx context.Context, proxyURL string, assignedAt time.Time) error
	DecrementAssigned(ctx context.Context, proxyURL string) error
	RecordError(ctx context.Context, proxyURL string) (*models.Proxy, error)
	RecordProbe(ctx context.Context, proxyURL string, ok bool) error
	Remove(ctx context.Context, proxyURL string) error
}

type proxyRepository struct {
	db *sql.DB
}

func NewProxyRepository(db *sql.DB) ProxyRepository {
	return &proxyRepository{db: db}
}

const proxyColumns = `id, proxy_url, country, city, is_active, error_count, max_errors,
	last_used, accounts_assigned, max_accounts, created_at, updated_at`

func scanProxy(row interface{ Scan(...any) error }) (*models.Proxy, error) {
	var p models.Proxy
	var lastUsed sql.NullTime
	err := row.Scan(&p.ID, &p.ProxyURL, &p.Country, &p.City, &p.IsActive, &p.ErrorCount,
		&p.MaxErrors, &lastUsed, &p.AccountsAssigned, &p.MaxAccounts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		p.LastUsed = &lastUsed.Time
	}
	return &p, nil
}

func (r *proxyRepository) GetByURL(ctx context.Context, proxyURL string) (*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE proxy_url = $1`
	p, err := scanProxy(r.db.QueryRowContext(ctx, query, proxyURL))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return p, nil
}

func (r *proxyRepository) List(ctx context.Context) ([]*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies ORDER BY id`
	return r.queryProxies(ctx, query)
}

// ListAssignable returns active proxies with spare capacity ordered
// least-loaded then least-recently-used, the candidate pool for assignment.
func (r *proxyRepository) ListAssignable(ctx context.Context) ([]*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies
		WHERE is_active = true AND accounts_assigned < max_accounts
		ORDER BY accounts_assigned ASC, last_used ASC NULLS FIRST`
	return r.queryProxies(ctx, query)
}

func (r *proxyRepository) queryProxies(ctx context.Context, query string, args ...any) ([]*models.Proxy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var proxies []*models.Proxy
	for rows.Next() {
		p, err := scanProxy(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}

// Upsert inserts a proxy or refreshes its location without touching the
// assignment and error counters, so a pool re-sync never loses state.
func (r *proxyRepository) Upsert(ctx context.Context, p *models.Proxy) (bool, error) {
	query := `
		INSERT INTO proxies (proxy_url, country, city, max_errors, max_accounts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (proxy_url) DO UPDATE
		SET country = EXCLUDED.country, city = EXCLUDED.city, updated_at = now()
		RETURNING (xmax = 0)
	`
	var created bool
	err := r.db.QueryRowContext(ctx, query, p.ProxyURL, p.Country, p.City, p.MaxErrors, p.MaxAccounts).Scan(&created)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return created, nil
}

func (r *proxyRepository) MarkAssigned(ctx context.Context, proxyURL string, assignedAt time.Time) error {
	query := `
		UPDATE proxies
		SET accounts_assigned = accounts_assigned + 1, last_used = $1, updated_at = $1
		WHERE proxy_url = $2
	`
	_, err := r.db.ExecContext(ctx, query, assignedAt, proxyURL)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *proxyRepository) DecrementAssigned(ctx context.Context, proxyURL string) error {
	query := `
		UPDATE proxies
		SET accounts_assigned = GREATEST(accounts_assigned - 1, 0), updated_at = $1
		WHERE proxy_url = $2
	`
	_, err := r.db.ExecContext(ctx, query, time.Now(), proxyURL)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// RecordError bumps the error counter and deactivates the proxy once it has
// exhausted max_errors. Returns the updated row.
func (r *proxyRepository) RecordError(ctx context.Context, proxyURL string) (*models.Proxy, error) {
	query := `
		UPDATE proxies
		SET error_count = error_count + 1,
			is_active = (error_count + 1 < max_errors),
			updated_at = $1
		WHERE proxy_url = $2
		RETURNING ` + proxyColumns
	p, err := scanProxy(r.db.QueryRowContext(ctx, query, time.Now(), proxyURL))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return p, nil
}

func (r *proxyRepository) RecordProbe(ctx context.Context, proxyURL string, ok bool) error {
	var query string
	if ok {
		query = `
			UPDATE proxies
			SET is_active = true, error_count = 0, last_used = $1, updated_at = $1
			WHERE proxy_url = $2
		`
	} else {
		query = `
			UPDATE proxies
			SET error_count = error_count + 1,
				is_active = (error_count + 1 < max_errors),
				last_used = $1,
				updated_at = $1
			WHERE proxy_url = $2
		`
	}
	_, err := r.db.ExecContext(ctx, query, time.Now(), proxyURL)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *proxyRepository) Remove(ctx context.Context, proxyURL string) error {
	query := `DELETE FROM proxies WHERE proxy_url = $1`
	_, err := r.db.ExecContext(ctx, query, proxyURL)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
