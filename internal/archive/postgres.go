// Package archive persists finished runs to PostgreSQL so settlement
// results can be queried and reconciled after the process exits.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/txnfold/internal/ledger"
	"github.com/example/txnfold/internal/record"
)

// RunRecord describes one finished fold run.
type RunRecord struct {
	ID         string
	InputLabel string
	Records    int
	Malformed  int
	StartedAt  time.Time
	FinishedAt time.Time
}

var archiveMigrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		input_label TEXT NOT NULL,
		records BIGINT NOT NULL,
		malformed BIGINT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS run_accounts (
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		client INTEGER NOT NULL,
		available NUMERIC(20, 4) NOT NULL,
		held NUMERIC(20, 4) NOT NULL,
		total NUMERIC(20, 4) NOT NULL,
		locked BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, client)
	);`,
}

// PostgresArchiver writes run results to PostgreSQL.
type PostgresArchiver struct {
	pool *pgxpool.Pool
}

// NewPostgresArchiver connects to databaseURL and verifies the
// connection.
func NewPostgresArchiver(ctx context.Context, databaseURL string) (*PostgresArchiver, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresArchiver{pool: pool}, nil
}

// EnsureSchema creates the archive tables when they do not exist.
func (a *PostgresArchiver) EnsureSchema(ctx context.Context) error {
	for _, migration := range archiveMigrations {
		if _, err := a.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// ArchiveRun stores a run and its final accounts in a single
// transaction: either the whole run lands or none of it does.
func (a *PostgresArchiver) ArchiveRun(ctx context.Context, run RunRecord, accounts []ledger.Account) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, input_label, records, malformed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.InputLabel, run.Records, run.Malformed, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, acct := range accounts {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_accounts (run_id, client, available, held, total, locked)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, run.ID, int32(acct.Client),
			record.FormatAmount(acct.Available),
			record.FormatAmount(acct.Held),
			record.FormatAmount(acct.Total()),
			acct.Locked)
		if err != nil {
			return fmt.Errorf("failed to insert account for client %d: %w", acct.Client, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *PostgresArchiver) Close() {
	a.pool.Close()
}
