// Package docstore defines the hierarchical document store contract the rest
// of the app is written against: collections addressed by path segments,
// point writes, and live subscriptions that deliver full ordered snapshots.
//
// Two implementations exist: memory (development, tests) and sqlite
// (persistent, with optional AMQP change fan-out across instances).
package docstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Doc is one stored document. CreatedAt is server-assigned on Create and is
// never writable by callers.
type Doc struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// OrderSpec describes snapshot ordering: a field name (or CreatedAtField)
// and a direction.
type OrderSpec struct {
	Field string
	Desc  bool
}

// CreatedAtField orders by the server-assigned creation timestamp.
const CreatedAtField = "createdAt"

// SnapshotFunc receives the full ordered contents of a collection. The store
// guarantees at most one invocation at a time per subscription; snapshots may
// arrive at arbitrary times and fully replace earlier ones.
type SnapshotFunc func(docs []Doc)

// Subscription is the handle for cancelling a live subscription.
// Unsubscribe is idempotent and stops delivery deterministically.
type Subscription interface {
	Unsubscribe()
}

// Store is the document store contract.
//
// Writes are fire-and-forget from the consumer's perspective: their effect
// becomes visible through the next snapshot, which may interleave with other
// clients' writes. No conflict detection is performed.
type Store interface {
	// Create inserts a document with a generated ID and server-assigned
	// creation timestamp, returning the new ID.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update merges the given fields into an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document unconditionally. Deleting an absent document
	// is not an error.
	Delete(ctx context.Context, collection, id string) error

	// GetOnce reads a single document without subscribing.
	GetOnce(ctx context.Context, collection, id string) (Doc, error)

	// Subscribe registers a live snapshot consumer for a collection and
	// delivers an initial snapshot asynchronously.
	Subscribe(collection string, order OrderSpec, fn SnapshotFunc) (Subscription, error)

	Close() error
}

// Notifier publishes collection-change events to other process instances.
// It is optional; a nil notifier means single-instance operation.
type Notifier interface {
	PublishChange(ctx context.Context, collection string) error
}

// Collection path helpers. The hierarchy mirrors the house-scoped layout:
// houses, then per-house budgets and transactions sub-collections.
const (
	HousesCollection = "houses"
	UsersCollection  = "users"
)

func HouseBudgets(houseID string) string {
	return HousesCollection + "/" + houseID + "/budgets"
}

func HouseTransactions(houseID string) string {
	return HousesCollection + "/" + houseID + "/transactions"
}

func HouseRecurring(houseID string) string {
	return HousesCollection + "/" + houseID + "/recurring"
}
