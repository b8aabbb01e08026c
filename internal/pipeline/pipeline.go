// Package pipeline runs complete folds: it moves records from a source
// through one or more ledger engines and merges the final account sets.
//
// Two modes exist. The sequential fold is the reference behavior: one
// engine, records applied in arrival order. The partitioned fold
// demultiplexes records by client id onto independent workers; because
// clients are causally independent and the demultiplexer screens
// duplicate transaction ids in arrival order, both modes produce the
// same final accounts for every input.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/example/txnfold/internal/ledger"
	"github.com/example/txnfold/internal/record"
	"github.com/example/txnfold/internal/source"
	"github.com/example/txnfold/internal/storage"
)

// Tallies counts fold outcomes for a run.
type Tallies map[ledger.Outcome]int

func (t Tallies) add(o ledger.Outcome) { t[o]++ }

func (t Tallies) merge(other Tallies) {
	for outcome, n := range other {
		t[outcome] += n
	}
}

// Result carries everything a finished fold produced.
type Result struct {
	// Accounts is the final account set, ordered by ascending client id.
	Accounts []ledger.Account
	// Tallies counts outcomes over every well-formed record.
	Tallies Tallies
	// Records is the number of well-formed records folded, applied and
	// rejected alike.
	Records int
	// Malformed is the number of input rows the source skipped.
	Malformed int
}

// StoreFactory builds one transaction store per fold engine. A
// partitioned run calls it once per worker plus once for the
// demultiplexer's duplicate screen.
type StoreFactory func() (storage.TransactionStore, error)

// Options configure a fold run.
type Options struct {
	// Workers selects the partitioned fold when 2 or more; anything
	// below runs the sequential fold.
	Workers int
	// NewStore defaults to in-memory stores when nil.
	NewStore StoreFactory
	Logger   *slog.Logger
}

const workerQueueDepth = 256

// Run folds every record from src into final account states. Rejected
// records are tallied and logged, never fatal: Run fails only when the
// input stream or a store does.
func Run(ctx context.Context, src source.Source, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newStore := opts.NewStore
	if newStore == nil {
		newStore = func() (storage.TransactionStore, error) { return storage.NewMemoryStore(), nil }
	}

	if opts.Workers >= 2 {
		return runPartitioned(ctx, src, opts.Workers, newStore, logger)
	}
	return runSequential(ctx, src, newStore, logger)
}

func runSequential(ctx context.Context, src source.Source, newStore StoreFactory, logger *slog.Logger) (*Result, error) {
	store, err := newStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	engine := ledger.NewEngine(store)
	tallies := make(Tallies)
	records := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		outcome, err := engine.Apply(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("fold failed at transaction %d: %w", rec.TxID, err)
		}
		records++
		tallies.add(outcome)
		logRejected(logger, outcome, rec)
	}

	return &Result{
		Accounts:  engine.Finalize(),
		Tallies:   tallies,
		Records:   records,
		Malformed: src.Malformed(),
	}, nil
}

// task is one routed record. duplicate marks a record the demultiplexer
// rejected for id reuse; the worker only materializes its account, so a
// client first sighted by a rejected record still gets an output row.
type task struct {
	rec       record.Record
	duplicate bool
}

// worker is one partition: an engine, its private store and a queue fed
// only by the demultiplexer. err is written solely by the worker's own
// goroutine and read after the join.
type worker struct {
	in      chan task
	engine  *ledger.Engine
	store   storage.TransactionStore
	tallies Tallies
	err     error
}

func runPartitioned(ctx context.Context, src source.Source, workers int, newStore StoreFactory, logger *slog.Logger) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The demultiplexer owns the duplicate screen. Reserving ids here,
	// in arrival order and before routing, keeps reservation a pure
	// function of the record stream; worker-local reservations then
	// never collide and the result matches the sequential fold.
	screen, err := newStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer screen.Close()

	pool := make([]*worker, workers)
	for i := range pool {
		store, err := newStore()
		if err != nil {
			for _, w := range pool[:i] {
				w.store.Close()
			}
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		pool[i] = &worker{
			in:      make(chan task, workerQueueDepth),
			engine:  ledger.NewEngine(store),
			store:   store,
			tallies: make(Tallies),
		}
	}
	defer func() {
		for _, w := range pool {
			w.store.Close()
		}
	}()

	var wg sync.WaitGroup
	for _, w := range pool {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			for tk := range w.in {
				if w.err != nil {
					continue // drain the queue after a failure
				}
				if tk.duplicate {
					w.engine.Touch(tk.rec.Client)
					w.tallies.add(ledger.OutcomeDuplicateTransaction)
					logRejected(logger, ledger.OutcomeDuplicateTransaction, tk.rec)
					continue
				}
				outcome, err := w.engine.Apply(ctx, tk.rec)
				if err != nil {
					w.err = err
					cancel()
					continue
				}
				w.tallies.add(outcome)
				logRejected(logger, outcome, tk.rec)
			}
		}(w)
	}

	records := 0
	var runErr error

receive:
	for {
		if err := ctx.Err(); err != nil {
			if runErr == nil {
				runErr = err
			}
			break
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			cancel()
			break
		}

		records++
		tk := task{rec: rec}
		if rec.Kind.MovesFunds() {
			fresh, err := screen.ReserveTxID(ctx, rec.TxID)
			if err != nil {
				runErr = fmt.Errorf("failed to reserve transaction %d: %w", rec.TxID, err)
				cancel()
				break
			}
			tk.duplicate = !fresh
		}

		select {
		case pool[bucketFor(rec.Client, workers)].in <- tk:
		case <-ctx.Done():
			if runErr == nil {
				runErr = ctx.Err()
			}
			break receive
		}
	}

	for _, w := range pool {
		close(w.in)
	}
	wg.Wait()

	for _, w := range pool {
		if w.err == nil {
			continue
		}
		// A failed worker cancels the context; report the failure, not
		// the cancellation it caused.
		if runErr == nil || errors.Is(runErr, context.Canceled) {
			runErr = fmt.Errorf("partition fold failed: %w", w.err)
		}
		break
	}
	if runErr != nil {
		return nil, runErr
	}

	var accounts []ledger.Account
	tallies := make(Tallies)
	for _, w := range pool {
		accounts = append(accounts, w.engine.Finalize()...)
		tallies.merge(w.tallies)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Client < accounts[j].Client })

	return &Result{
		Accounts:  accounts,
		Tallies:   tallies,
		Records:   records,
		Malformed: src.Malformed(),
	}, nil
}

func logRejected(logger *slog.Logger, outcome ledger.Outcome, rec record.Record) {
	if outcome == ledger.OutcomeApplied {
		return
	}
	logger.Debug("record rejected",
		"outcome", string(outcome),
		"kind", string(rec.Kind),
		"client", rec.Client,
		"tx", rec.TxID,
	)
}
