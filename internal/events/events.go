// Package events publishes settled account states for downstream
// consumers.
package events

import (
	"context"
	"time"
)

// AccountSettled is emitted once per output account at the end of a
// run. Amounts are fixed-point strings with four fractional digits.
type AccountSettled struct {
	RunID     string    `json:"run_id"`
	Client    uint16    `json:"client"`
	Available string    `json:"available"`
	Held      string    `json:"held"`
	Total     string    `json:"total"`
	Locked    bool      `json:"locked"`
	SettledAt time.Time `json:"settled_at"`
}

// Publisher delivers settlement events to an external system.
type Publisher interface {
	Publish(ctx context.Context, event AccountSettled) error
	Close() error
}

// NoopPublisher drops every event. It stands in when no broker is
// configured.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, AccountSettled) error { return nil }

func (NoopPublisher) Close() error { return nil }
