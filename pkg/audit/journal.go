// Package audit provides a tamper-evident run journal using hash
// chaining: every entry commits to its predecessor, so edits,
// reordering, and truncation are detectable after the fact.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Entry is a single journal line. Hash covers every other field and
// PreviousHash links the entry to its predecessor.
type Entry struct {
	Seq          uint64 `json:"seq"`
	Timestamp    string `json:"timestamp"`
	Kind         string `json:"kind"`
	Payload      string `json:"payload"`
	PreviousHash string `json:"previous_hash"`
	Hash         string `json:"hash"`
}

// Journal appends hash-chained entries to a writer, one JSON object
// per line. Safe for concurrent use.
type Journal struct {
	mu           sync.Mutex
	seq          uint64
	previousHash string
	enc          *json.Encoder
}

// NewJournal creates a Journal writing to w, initialized with a zero hash.
func NewJournal(w io.Writer) *Journal {
	return &Journal{
		previousHash: strings.Repeat("0", 64),
		enc:          json.NewEncoder(w),
	}
}

// Append chains a new entry and persists it.
func (j *Journal) Append(kind, payload string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		Seq:          j.seq,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Kind:         kind,
		Payload:      payload,
		PreviousHash: j.previousHash,
	}
	entry.Hash = entryHash(entry)

	if err := j.enc.Encode(entry); err != nil {
		return nil, fmt.Errorf("failed to persist audit entry: %w", err)
	}

	j.seq++
	j.previousHash = entry.Hash
	return entry, nil
}

func entryHash(e *Entry) string {
	input := fmt.Sprintf("%d|%s|%s|%s|%s", e.Seq, e.PreviousHash, e.Timestamp, e.Kind, e.Payload)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that entries form an unbroken hash chain.
func VerifyChain(entries []*Entry) bool {
	for i, entry := range entries {
		if i > 0 {
			prev := entries[i-1]
			if entry.PreviousHash != prev.Hash || entry.Seq != prev.Seq+1 {
				return false
			}
		}
		if entryHash(entry) != entry.Hash {
			return false
		}
	}
	return true
}

// ReadJournal loads every entry from a journal stream.
func ReadJournal(r io.Reader) ([]*Entry, error) {
	dec := json.NewDecoder(r)
	var entries []*Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
}
