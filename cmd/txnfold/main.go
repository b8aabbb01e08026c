package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/example/txnfold/internal/archive"
	"github.com/example/txnfold/internal/config"
	"github.com/example/txnfold/internal/events"
	"github.com/example/txnfold/internal/ledger"
	"github.com/example/txnfold/internal/pipeline"
	"github.com/example/txnfold/internal/record"
	"github.com/example/txnfold/internal/report"
	"github.com/example/txnfold/internal/source"
	"github.com/example/txnfold/internal/storage"
	"github.com/example/txnfold/pkg/audit"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <transaction-log>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	inputPath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	runID := uuid.New().String()
	startedAt := time.Now().UTC()
	ctx := context.Background()

	input, err := os.Open(inputPath)
	if err != nil {
		logger.Error("failed to open input", "path", inputPath, "error", err)
		os.Exit(1)
	}
	defer input.Close()

	var src source.Source
	if cfg.Format == config.FormatJSONL {
		src, err = source.NewJSONLSource(input, logger)
		if err != nil {
			logger.Error("failed to create source", "error", err)
			os.Exit(1)
		}
	} else {
		src = source.NewCSVSource(input, logger)
	}

	newStore, cleanupStores, err := storeFactory(ctx, cfg, runID)
	if err != nil {
		logger.Error("failed to prepare store backend", "error", err)
		os.Exit(1)
	}
	defer cleanupStores()

	result, err := pipeline.Run(ctx, src, pipeline.Options{
		Workers:  cfg.Workers,
		NewStore: newStore,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("fold failed", "run_id", runID, "error", err)
		os.Exit(1)
	}
	finishedAt := time.Now().UTC()

	if err := report.WriteStatement(os.Stdout, result.Accounts); err != nil {
		logger.Error("failed to write statement", "run_id", runID, "error", err)
		os.Exit(1)
	}

	if cfg.AuditJournalPath != "" {
		if err := writeAuditJournal(cfg.AuditJournalPath, runID, inputPath, result); err != nil {
			logger.Error("failed to write audit journal", "run_id", runID, "error", err)
			os.Exit(1)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		publishSettlements(ctx, logger, cfg, runID, finishedAt, result.Accounts)
	}

	if cfg.ArchiveDatabaseURL != "" {
		run := archive.RunRecord{
			ID:         runID,
			InputLabel: inputPath,
			Records:    result.Records,
			Malformed:  result.Malformed,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
		}
		if err := archiveRun(ctx, cfg.ArchiveDatabaseURL, run, result.Accounts); err != nil {
			logger.Error("failed to archive run", "run_id", runID, "error", err)
			os.Exit(1)
		}
	}

	attrs := []any{
		"run_id", runID,
		"records", result.Records,
		"malformed", result.Malformed,
		"accounts", len(result.Accounts),
		"duration_ms", time.Since(startedAt).Milliseconds(),
	}
	for _, outcome := range ledger.Outcomes() {
		if n := result.Tallies[outcome]; n > 0 {
			attrs = append(attrs, string(outcome), n)
		}
	}
	logger.Info("run complete", attrs...)
}

// storeFactory builds the configured TransactionStore constructor plus
// a cleanup for any scratch state left on disk.
func storeFactory(ctx context.Context, cfg *config.Config, runID string) (pipeline.StoreFactory, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		dir := cfg.StoreDir
		cleanup := func() {}
		if dir == "" {
			tmp, err := os.MkdirTemp("", "txnfold-"+runID+"-")
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create scratch directory: %w", err)
			}
			dir = tmp
			cleanup = func() { os.RemoveAll(tmp) }
		}
		factory := func() (storage.TransactionStore, error) {
			return storage.NewSQLiteStore(filepath.Join(dir, uuid.New().String()+".db"))
		}
		return factory, cleanup, nil

	case config.StoreRedis:
		// Every store gets its own key prefix: engines and the
		// duplicate screen stay isolated even on a shared server.
		factory := func() (storage.TransactionStore, error) {
			prefix := fmt.Sprintf("txnfold:%s:%s", runID, uuid.New().String())
			return storage.NewRedisStore(ctx, cfg.RedisAddr, prefix)
		}
		return factory, func() {}, nil

	default:
		factory := func() (storage.TransactionStore, error) {
			return storage.NewMemoryStore(), nil
		}
		return factory, func() {}, nil
	}
}

// writeAuditJournal records the run's output as a hash-chained journal:
// a run_open entry, one entry per account, and a run_close entry.
func writeAuditJournal(path, runID, inputPath string, result *pipeline.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit journal: %w", err)
	}
	defer f.Close()

	journal := audit.NewJournal(f)
	if _, err := journal.Append("run_open", fmt.Sprintf("run %s input %s", runID, inputPath)); err != nil {
		return err
	}
	for _, acct := range result.Accounts {
		payload := fmt.Sprintf("client %d available %s held %s total %s locked %t",
			acct.Client,
			record.FormatAmount(acct.Available),
			record.FormatAmount(acct.Held),
			record.FormatAmount(acct.Total()),
			acct.Locked,
		)
		if _, err := journal.Append("account", payload); err != nil {
			return err
		}
	}
	closing := fmt.Sprintf("run %s records %d malformed %d accounts %d",
		runID, result.Records, result.Malformed, len(result.Accounts))
	for _, outcome := range ledger.Outcomes() {
		if n := result.Tallies[outcome]; n > 0 {
			closing += fmt.Sprintf(" %s %d", outcome, n)
		}
	}
	_, err = journal.Append("run_close", closing)
	return err
}

// publishSettlements emits one event per account. Delivery is best
// effort: a broker failure never fails the run.
func publishSettlements(ctx context.Context, logger *slog.Logger, cfg *config.Config, runID string, settledAt time.Time, accounts []ledger.Account) {
	pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer pub.Close()

	for _, acct := range accounts {
		event := events.AccountSettled{
			RunID:     runID,
			Client:    acct.Client,
			Available: record.FormatAmount(acct.Available),
			Held:      record.FormatAmount(acct.Held),
			Total:     record.FormatAmount(acct.Total()),
			Locked:    acct.Locked,
			SettledAt: settledAt,
		}
		if err := pub.Publish(ctx, event); err != nil {
			logger.Warn("failed to publish settlement event", "run_id", runID, "client", acct.Client, "error", err)
		}
	}
}

func archiveRun(ctx context.Context, databaseURL string, run archive.RunRecord, accounts []ledger.Account) error {
	archiver, err := archive.NewPostgresArchiver(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer archiver.Close()

	if err := archiver.EnsureSchema(ctx); err != nil {
		return err
	}
	return archiver.ArchiveRun(ctx, run, accounts)
}
