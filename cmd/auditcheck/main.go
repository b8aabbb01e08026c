package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/example/txnfold/pkg/audit"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <journal-file>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	f, err := os.Open(os.Args[1])
	if err != nil {
		logger.Error("failed to open journal", "path", os.Args[1], "error", err)
		os.Exit(1)
	}
	defer f.Close()

	entries, err := audit.ReadJournal(f)
	if err != nil {
		logger.Error("failed to read journal", "error", err)
		os.Exit(1)
	}

	if !audit.VerifyChain(entries) {
		logger.Error("journal hash chain is broken", "entries", len(entries))
		os.Exit(1)
	}

	logger.Info("journal verified", "entries", len(entries))
}
