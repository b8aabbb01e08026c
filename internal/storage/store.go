package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/example/txnfold/internal/disputes"
)

// Deposit is a retained deposit eligible for dispute lookups.
type Deposit struct {
	TxID   uint32
	Client uint16
	Amount decimal.Decimal
	State  disputes.State
}

// TransactionStore tracks every funds-moving transaction id seen during
// a run and retains applied deposits for dispute processing. A store
// belongs to exactly one fold engine and is discarded when the run
// finishes.
type TransactionStore interface {
	// ReserveTxID marks a transaction id as seen. It returns false when
	// the id was already reserved, leaving the original reservation in
	// place.
	ReserveTxID(ctx context.Context, id uint32) (bool, error)

	// PutDeposit retains an applied deposit for later dispute lookups.
	PutDeposit(ctx context.Context, dep Deposit) error

	// GetDeposit returns the retained deposit for id. The second result
	// is false when no deposit with that id was retained; withdrawals
	// are never retained.
	GetDeposit(ctx context.Context, id uint32) (Deposit, bool, error)

	// SetDisputeState moves a retained deposit to a new lifecycle state.
	SetDisputeState(ctx context.Context, id uint32, state disputes.State) error

	// Close releases store resources.
	Close() error
}
