package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/txnfold/internal/disputes"
)

// SQLiteStore spills reserved ids and retained deposits to a sqlite
// database so logs larger than memory still fold. One store maps to one
// database file created for the run.
type SQLiteStore struct {
	db *sql.DB
}

var _ TransactionStore = (*SQLiteStore)(nil)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS seen_transactions (
	tx_id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS deposits (
	tx_id INTEGER PRIMARY KEY,
	client INTEGER NOT NULL,
	amount TEXT NOT NULL,
	state TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at path and runs
// migrations. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite store: %w", err)
	}

	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run store migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ReserveTxID(ctx context.Context, id uint32) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO seen_transactions (tx_id) VALUES (?)`, int64(id))
	if err != nil {
		return false, fmt.Errorf("failed to reserve transaction id: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *SQLiteStore) PutDeposit(ctx context.Context, dep Deposit) error {
	query := `
		INSERT INTO deposits (tx_id, client, amount, state)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, int64(dep.TxID), int64(dep.Client), dep.Amount.String(), string(dep.State))
	if err != nil {
		return fmt.Errorf("failed to retain deposit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDeposit(ctx context.Context, id uint32) (Deposit, bool, error) {
	var (
		client int64
		amount string
		state  string
	)

	query := `SELECT client, amount, state FROM deposits WHERE tx_id = ?`
	err := s.db.QueryRowContext(ctx, query, int64(id)).Scan(&client, &amount, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return Deposit{}, false, nil
	}
	if err != nil {
		return Deposit{}, false, fmt.Errorf("failed to load deposit: %w", err)
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return Deposit{}, false, fmt.Errorf("corrupted amount for transaction %d: %w", id, err)
	}
	if !disputes.Valid(disputes.State(state)) {
		return Deposit{}, false, fmt.Errorf("corrupted dispute state %q for transaction %d", state, id)
	}

	return Deposit{
		TxID:   id,
		Client: uint16(client),
		Amount: amt,
		State:  disputes.State(state),
	}, true, nil
}

func (s *SQLiteStore) SetDisputeState(ctx context.Context, id uint32, state disputes.State) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deposits SET state = ? WHERE tx_id = ?`, string(state), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update dispute state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no retained deposit for transaction %d", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
