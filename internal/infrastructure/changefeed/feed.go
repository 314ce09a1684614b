package changefeed

import (
	"context"
	"encoding/json"
)

// InsertEvent is one row-insert notification pushed by the backing store.
// Record may be a partial projection of the row; consumers re-fetch by id
// when they need the full joined record.
type InsertEvent struct {
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// Subscription is a live stream of insert events scoped to one table/filter
// pair. Events is closed when the subscription terminates; Err reports why,
// or nil after a clean Close.
type Subscription interface {
	Events() <-chan InsertEvent
	Err() error
	Close()
}

// Feed grants scoped insert subscriptions on the backing store's tables.
// A subscription is an exclusive resource: callers acquire one on open and
// must Close it before acquiring another for a different scope.
type Feed interface {
	SubscribeToInserts(ctx context.Context, table, filter string) (Subscription, error)
}
