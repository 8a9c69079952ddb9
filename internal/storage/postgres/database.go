package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/NgigiN/momo-wallet/internal/storage"
)

type DB struct {
	*sql.DB
}

func New(connStr string) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate creates the schema. Table and column names match the SQLite store
// so data can move between the two.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		initial_balance BIGINT NOT NULL DEFAULT 0,
		balance BIGINT NOT NULL DEFAULT 0,
		allow_negative_balance BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		user_id TEXT NOT NULL,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		amount BIGINT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		category_id BIGINT,
		date TIMESTAMPTZ NOT NULL,
		sms_reference TEXT,
		client_ref TEXT,
		UNIQUE (user_id, client_ref)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_sms_reference ON transactions (sms_reference)`,
	`CREATE TABLE IF NOT EXISTS sms_imports (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		user_id TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount BIGINT NOT NULL,
		fees BIGINT NOT NULL DEFAULT 0,
		balance BIGINT,
		recipient TEXT,
		transaction_id TEXT,
		status TEXT NOT NULL,
		ledger_transaction_id BIGINT REFERENCES transactions(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sms_imports_user_tid ON sms_imports (user_id, transaction_id)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fixed_charges (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		user_id TEXT NOT NULL,
		label TEXT NOT NULL,
		amount BIGINT NOT NULL,
		due_day INTEGER NOT NULL,
		paid_through TEXT NOT NULL DEFAULT ''
	)`,
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
