/*
store.go - Persistence contract for records

PURPOSE:
  Defines the interface between the domain logic and the database.
  The trading and reporting packages only ever talk to a Store; they never
  know whether records live in memory, SQLite or Postgres.

KEY INTERFACES:
  Store:   get-by-id, filtered/ordered list, create, partial update, delete, count
  TxStore: Store plus WithTx for atomic multi-record writes

CONTRACT DETAILS:
  - Get returns (nil, nil) when the record does not exist.
  - Create assigns a UUID unless Fields carries a non-empty "id", and stamps
    created_at with the current time unless Fields carries a "created_at".
    Both reserved keys are lifted onto the Record and removed from Fields.
    The overrides exist for seeding and for undoing deletes.
  - Update merges the given fields into the stored ones (partial update).
    Updating or deleting a missing record returns a *NotFoundError.
  - Values are normalized with NormalizeFields before they are stored.

ATOMICITY:
  A plain Store makes no promise across calls. TxStore.WithTx runs fn against
  a transactional view; if fn returns an error nothing it wrote is kept.
  RunUnitOfWork (unitofwork.go) picks WithTx when available and falls back to
  a compensating journal otherwise.

IMPLEMENTATIONS:
  - generic/store/memory.go: Memory and TxMemory, for tests and dev
  - store/sqlite/sqlite.go:  database/sql + go-sqlite3
  - store/postgres/postgres.go: gorm + Postgres

SEE ALSO:
  - query.go: Query semantics shared by all implementations
  - unitofwork.go: Atomic or compensated multi-record writes
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

// Store persists records grouped by entity type.
type Store interface {
	// Get returns the record, or (nil, nil) when absent.
	Get(ctx context.Context, entity EntityType, id string) (*Record, error)

	// List returns records matching q in q's order.
	List(ctx context.Context, entity EntityType, q Query) ([]Record, error)

	// Create inserts a record and returns it with its generated id.
	Create(ctx context.Context, entity EntityType, fields Fields) (Record, error)

	// Update merges fields into an existing record.
	Update(ctx context.Context, entity EntityType, id string, fields Fields) error

	// Delete removes a record.
	Delete(ctx context.Context, entity EntityType, id string) error

	// Count returns how many records match q. OrderBy and Limit are ignored.
	Count(ctx context.Context, entity EntityType, q Query) (int, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// CREATE HELPERS - shared by implementations
// =============================================================================

// PrepareCreate normalizes fields and resolves the reserved id / created_at
// overrides. newID is called only when no id override is present.
func PrepareCreate(entity EntityType, fields Fields, newID func() string, now time.Time) (Record, error) {
	norm, err := NormalizeFields(fields)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Type: entity, CreatedAt: now.UTC()}

	if id, ok := norm[FieldID].(string); ok && id != "" {
		rec.ID = id
	} else {
		rec.ID = newID()
	}
	delete(norm, FieldID)

	if at, ok := norm[FieldCreatedAt].(time.Time); ok && !at.IsZero() {
		rec.CreatedAt = at.UTC()
	}
	delete(norm, FieldCreatedAt)

	rec.Fields = norm
	return rec, nil
}

// PrepareUpdate normalizes a partial update. The reserved keys cannot be changed.
func PrepareUpdate(fields Fields) (Fields, error) {
	norm, err := NormalizeFields(fields)
	if err != nil {
		return nil, err
	}
	delete(norm, FieldID)
	delete(norm, FieldCreatedAt)
	return norm, nil
}
