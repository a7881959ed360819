package repository

import (
	"context"
	"database/sql"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		access_token TEXT NOT NULL,
		instagram_account_id TEXT NOT NULL,
		proxy_url TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		daily_limit INT NOT NULL DEFAULT 5,
		current_daily_posts INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		last_post_time TIMESTAMPTZ,
		last_activity TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS proxies (
		id BIGSERIAL PRIMARY KEY,
		proxy_url TEXT UNIQUE NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT true,
		error_count INT NOT NULL DEFAULT 0,
		max_errors INT NOT NULL DEFAULT 3,
		last_used TIMESTAMPTZ,
		accounts_assigned INT NOT NULL DEFAULT 0,
		max_accounts INT NOT NULL DEFAULT 3,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS content_folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT UNIQUE NOT NULL,
		total_media INT NOT NULL DEFAULT 0,
		used_media INT NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT 'entertainment',
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS post_tasks (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		folder_id TEXT NOT NULL REFERENCES content_folders(id),
		media_path TEXT NOT NULL,
		generated_caption TEXT NOT NULL DEFAULT '',
		scheduled_time TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		max_attempts INT NOT NULL DEFAULT 3,
		media_id TEXT NOT NULL DEFAULT '',
		instagram_url TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_post_tasks_ready
		ON post_tasks (status, scheduled_time)`,
	`CREATE TABLE IF NOT EXISTS post_statistics (
		id BIGSERIAL PRIMARY KEY,
		task_id TEXT UNIQUE NOT NULL REFERENCES post_tasks(id) ON DELETE CASCADE,
		impressions INT NOT NULL DEFAULT 0,
		reach INT NOT NULL DEFAULT 0,
		likes INT NOT NULL DEFAULT 0,
		comments INT NOT NULL DEFAULT 0,
		shares INT NOT NULL DEFAULT 0,
		saves INT NOT NULL DEFAULT 0,
		profile_visits INT NOT NULL DEFAULT 0,
		follows INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS system_logs (
		id BIGSERIAL PRIMARY KEY,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		component TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL DEFAULT '',
		task_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables on startup. A single process owns the
// schema, so plain idempotent DDL is enough.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
