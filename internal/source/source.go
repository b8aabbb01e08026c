// Package source turns raw input streams into transaction records.
//
// Sources own the malformed-row policy: rows that cannot be decoded
// are counted, logged at debug level and dropped, so a bad row never
// reaches the fold engine and never aborts a run. Only real I/O
// failures surface as errors.
package source

import (
	"github.com/example/txnfold/internal/record"
)

// Source yields transaction records from an input stream in arrival
// order.
type Source interface {
	// Next returns the next well-formed record, skipping malformed
	// rows. It returns io.EOF once the stream is exhausted and any
	// other error only for underlying read failures.
	Next() (record.Record, error)

	// Malformed reports how many rows have been skipped so far.
	Malformed() int
}
