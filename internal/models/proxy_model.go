package models

import "time"

type Proxy struct {
	ID               int64      `db:"id" json:"id"`
	ProxyURL         string     `db:"proxy_url" json:"proxy_url"`
	Country          string     `db:"country" json:"country"`
	City             string     `db:"city" json:"city"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	ErrorCount       int        `db:"error_count" json:"error_count"`
	MaxErrors        int        `db:"max_errors" json:"max_errors"`
	LastUsed         *time.Time `db:"last_used" json:"last_used"`
	AccountsAssigned int        `db:"accounts_assigned" json:"accounts_assigned"`
	MaxAccounts      int        `db:"max_accounts" json:"max_accounts"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
