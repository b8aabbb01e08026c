package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/txnfold/internal/disputes"
	"github.com/example/txnfold/internal/record"
	"github.com/example/txnfold/internal/storage"
)

// Engine folds an ordered stream of transaction records into per-client
// account state. Accounts live in memory; funds-moving transaction ids
// and retained deposits live in a TransactionStore so dispute records
// can reference deposits seen arbitrarily far back.
//
// An Engine is not safe for concurrent use. Partitioned folds run one
// engine per partition.
type Engine struct {
	store    storage.TransactionStore
	accounts map[uint16]*Account
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store storage.TransactionStore) *Engine {
	return &Engine{
		store:    store,
		accounts: make(map[uint16]*Account),
	}
}

// account returns the client's account, materializing a zero-valued one
// on first sight of the client id.
func (e *Engine) account(client uint16) *Account {
	acct, ok := e.accounts[client]
	if !ok {
		acct = &Account{Client: client}
		e.accounts[client] = acct
	}
	return acct
}

// Apply folds one record into the ledger and reports what happened.
// The returned error is reserved for storage failures; domain
// rejections (duplicates, locks, missing funds, bad dispute references)
// come back as outcomes and leave every account untouched.
func (e *Engine) Apply(ctx context.Context, rec record.Record) (Outcome, error) {
	acct := e.account(rec.Client)

	switch rec.Kind {
	case record.KindDeposit, record.KindWithdrawal:
		return e.applyTransfer(ctx, acct, rec)
	case record.KindDispute:
		return e.applyDispute(ctx, acct, rec)
	case record.KindResolve:
		return e.applyResolve(ctx, acct, rec)
	case record.KindChargeback:
		return e.applyChargeback(ctx, acct, rec)
	default:
		return "", fmt.Errorf("unhandled record kind %q", rec.Kind)
	}
}

// applyTransfer handles the two funds-moving kinds. The transaction id
// is reserved before any other check, so a rejected transfer still
// consumes its id.
func (e *Engine) applyTransfer(ctx context.Context, acct *Account, rec record.Record) (Outcome, error) {
	fresh, err := e.store.ReserveTxID(ctx, rec.TxID)
	if err != nil {
		return "", fmt.Errorf("failed to reserve transaction %d: %w", rec.TxID, err)
	}
	if !fresh {
		return OutcomeDuplicateTransaction, nil
	}

	if acct.Locked {
		return OutcomeAccountLocked, nil
	}

	if rec.Kind == record.KindDeposit {
		dep := storage.Deposit{
			TxID:   rec.TxID,
			Client: rec.Client,
			Amount: rec.Amount,
			State:  disputes.StateNormal,
		}
		if err := e.store.PutDeposit(ctx, dep); err != nil {
			return "", fmt.Errorf("failed to retain deposit %d: %w", rec.TxID, err)
		}
		acct.Available = acct.Available.Add(rec.Amount)
		return OutcomeApplied, nil
	}

	if acct.Available.LessThan(rec.Amount) {
		return OutcomeInsufficientFunds, nil
	}
	acct.Available = acct.Available.Sub(rec.Amount)
	return OutcomeApplied, nil
}

// applyDispute places a hold on a previously applied deposit. Available
// funds may go negative when the deposited funds were already withdrawn.
func (e *Engine) applyDispute(ctx context.Context, acct *Account, rec record.Record) (Outcome, error) {
	dep, outcome, err := e.lookupDeposit(ctx, rec, disputes.StateDisputed)
	if outcome != OutcomeApplied || err != nil {
		return outcome, err
	}

	if err := e.store.SetDisputeState(ctx, rec.TxID, disputes.StateDisputed); err != nil {
		return "", fmt.Errorf("failed to mark transaction %d disputed: %w", rec.TxID, err)
	}
	acct.Available = acct.Available.Sub(dep.Amount)
	acct.Held = acct.Held.Add(dep.Amount)
	return OutcomeApplied, nil
}

// applyResolve releases a hold back to available funds.
func (e *Engine) applyResolve(ctx context.Context, acct *Account, rec record.Record) (Outcome, error) {
	dep, outcome, err := e.lookupDeposit(ctx, rec, disputes.StateResolved)
	if outcome != OutcomeApplied || err != nil {
		return outcome, err
	}

	if err := e.store.SetDisputeState(ctx, rec.TxID, disputes.StateResolved); err != nil {
		return "", fmt.Errorf("failed to mark transaction %d resolved: %w", rec.TxID, err)
	}
	acct.Held = acct.Held.Sub(dep.Amount)
	acct.Available = acct.Available.Add(dep.Amount)
	return OutcomeApplied, nil
}

// applyChargeback withdraws held funds and locks the account. The lock
// stops further deposits and withdrawals but not dispute processing, so
// other deposits on the account can still be charged back.
func (e *Engine) applyChargeback(ctx context.Context, acct *Account, rec record.Record) (Outcome, error) {
	dep, outcome, err := e.lookupDeposit(ctx, rec, disputes.StateChargedBack)
	if outcome != OutcomeApplied || err != nil {
		return outcome, err
	}

	if err := e.store.SetDisputeState(ctx, rec.TxID, disputes.StateChargedBack); err != nil {
		return "", fmt.Errorf("failed to mark transaction %d charged back: %w", rec.TxID, err)
	}
	acct.Held = acct.Held.Sub(dep.Amount)
	acct.Locked = true
	return OutcomeApplied, nil
}

// lookupDeposit resolves a dispute record's transaction reference. The
// referenced transaction must be a deposit retained for the same
// client, in a state that can move to target.
func (e *Engine) lookupDeposit(ctx context.Context, rec record.Record, target disputes.State) (storage.Deposit, Outcome, error) {
	dep, ok, err := e.store.GetDeposit(ctx, rec.TxID)
	if err != nil {
		return storage.Deposit{}, "", fmt.Errorf("failed to load transaction %d: %w", rec.TxID, err)
	}
	if !ok || dep.Client != rec.Client {
		return storage.Deposit{}, OutcomeUnknownTransaction, nil
	}
	if !disputes.CanTransition(dep.State, target) {
		return storage.Deposit{}, OutcomeInvalidTransition, nil
	}
	return dep, OutcomeApplied, nil
}

// Touch materializes the client's account without applying a record.
// Any record sights its client id, even one rejected before reaching an
// engine; partitioned folds use Touch to keep that behavior intact for
// records the demultiplexer screens out.
func (e *Engine) Touch(client uint16) {
	e.account(client)
}

// Finalize returns a snapshot of every account seen during the fold,
// ordered by ascending client id.
func (e *Engine) Finalize() []Account {
	out := make([]Account, 0, len(e.accounts))
	for _, acct := range e.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out
}
