package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/example/txnfold/internal/record"
)

// CSVSource reads the canonical comma-separated transaction log:
// `type,client,tx,amount` with an optional header row and an optional
// amount column on dispute, resolve and chargeback rows.
type CSVSource struct {
	reader    *csv.Reader
	logger    *slog.Logger
	row       int
	malformed int
	started   bool
}

var _ Source = (*CSVSource)(nil)

// NewCSVSource wraps r. Fields may carry surrounding whitespace and
// rows may have trailing columns; both are tolerated.
func NewCSVSource(r io.Reader, logger *slog.Logger) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSource{reader: cr, logger: logger}
}

func (s *CSVSource) Next() (record.Record, error) {
	for {
		fields, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return record.Record{}, io.EOF
		}
		s.row++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.skip(err)
				continue
			}
			// Not a row-level problem: the underlying reader failed.
			return record.Record{}, fmt.Errorf("failed to read input: %w", err)
		}

		if !s.started {
			s.started = true
			if isHeader(fields) {
				continue
			}
		}

		rec, err := parseRow(fields)
		if err != nil {
			s.skip(err)
			continue
		}
		return rec, nil
	}
}

func (s *CSVSource) Malformed() int {
	return s.malformed
}

func (s *CSVSource) skip(err error) {
	s.malformed++
	s.logger.Debug("skipping malformed row", "row", s.row, "error", err)
}

// isHeader reports whether the first row is the conventional
// `type,client,tx,amount` header.
func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "type")
}

func parseRow(fields []string) (record.Record, error) {
	if len(fields) < 3 {
		return record.Record{}, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}

	kind, err := record.ParseKind(fields[0])
	if err != nil {
		return record.Record{}, err
	}
	client, err := record.ParseClientID(fields[1])
	if err != nil {
		return record.Record{}, err
	}
	tx, err := record.ParseTxID(fields[2])
	if err != nil {
		return record.Record{}, err
	}

	rec := record.Record{Kind: kind, Client: client, TxID: tx}
	if kind.MovesFunds() {
		if len(fields) < 4 {
			return record.Record{}, errors.New("missing amount")
		}
		amt, err := record.ParseAmount(fields[3])
		if err != nil {
			return record.Record{}, err
		}
		rec.Amount = amt
	}
	// Dispute lifecycle rows tolerate a populated amount column; the
	// value plays no part in processing.
	return rec, nil
}
