/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store and generic.TxStore using SQLite. Every entity
  type shares one "records" table; a record's fields live in a tagged JSON
  column (see generic/codec.go) so decimals and timestamps round-trip exactly.

KEY TABLE:
  records:
    id           TEXT PRIMARY KEY
    entity_type  TEXT      -- "purchases", "batches", ...
    fields_json  TEXT      -- tagged JSON
    created_at   TEXT      -- RFC3339Nano, UTC
    updated_at   TEXT

QUERIES:
  Rows are selected by entity_type (indexed) and the generic.Query is then
  evaluated in Go with Query.Apply. This keeps filter and ordering semantics
  identical to the memory store. The data volume of a small trading business
  (thousands of purchases) makes this cheap.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single open connection: an
  in-memory SQLite database exists per connection, and a single writer is
  all SQLite supports anyway.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/batches.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := newWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func newWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the clock used to stamp created_at. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_entity_created
		ON records(entity_type, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (generic.Store interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, entity generic.EntityType, id string) (*generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, s.db, entity, id)
}

func (s *Store) List(ctx context.Context, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(ctx, s.db, entity, q)
}

func (s *Store) Create(ctx context.Context, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(ctx, s.db, entity, fields)
}

func (s *Store) Update(ctx context.Context, entity generic.EntityType, id string, fields generic.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, s.db, entity, id, fields)
}

func (s *Store) Delete(ctx context.Context, entity generic.EntityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delete(ctx, s.db, entity, id)
}

func (s *Store) Count(ctx context.Context, entity generic.EntityType, q generic.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs, err := s.list(ctx, s.db, entity, generic.Query{Where: q.Where})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *Store) get(ctx context.Context, db querier, entity generic.EntityType, id string) (*generic.Record, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, fields_json, created_at FROM records WHERE entity_type = ? AND id = ?",
		string(entity), id,
	)

	var fieldsJSON, createdAt string
	rec := generic.Record{Type: entity}
	err := row.Scan(&rec.ID, &fieldsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", entity, id, err)
	}

	if err := fillRecord(&rec, fieldsJSON, createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) list(ctx context.Context, db querier, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, fields_json, created_at FROM records WHERE entity_type = ? ORDER BY created_at ASC, id ASC",
		string(entity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", entity, err)
	}
	defer rows.Close()

	var records []generic.Record
	for rows.Next() {
		var fieldsJSON, createdAt string
		rec := generic.Record{Type: entity}
		if err := rows.Scan(&rec.ID, &fieldsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", entity, err)
		}
		if err := fillRecord(&rec, fieldsJSON, createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return q.Apply(records), nil
}

func (s *Store) create(ctx context.Context, db querier, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	rec, err := generic.PrepareCreate(entity, fields, uuid.NewString, s.now())
	if err != nil {
		return generic.Record{}, err
	}
	fieldsJSON, err := generic.EncodeFields(rec.Fields)
	if err != nil {
		return generic.Record{}, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO records (id, entity_type, fields_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.ID,
		string(entity),
		string(fieldsJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return generic.Record{}, fmt.Errorf("failed to create %s: %w", entity, err)
	}
	return rec, nil
}

func (s *Store) update(ctx context.Context, db querier, entity generic.EntityType, id string, fields generic.Fields) error {
	patch, err := generic.PrepareUpdate(fields)
	if err != nil {
		return err
	}

	current, err := s.get(ctx, db, entity, id)
	if err != nil {
		return err
	}
	if current == nil {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}

	fieldsJSON, err := generic.EncodeFields(current.Fields.Merge(patch))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"UPDATE records SET fields_json = ?, updated_at = ? WHERE entity_type = ? AND id = ?",
		string(fieldsJSON),
		s.now().UTC().Format(time.RFC3339Nano),
		string(entity), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entity, id, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, db querier, entity generic.EntityType, id string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM records WHERE entity_type = ? AND id = ?",
		string(entity), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func fillRecord(rec *generic.Record, fieldsJSON, createdAt string) error {
	fields, err := generic.DecodeFields([]byte(fieldsJSON))
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("record %s: bad created_at: %w", rec.ID, err)
	}
	rec.Fields = fields
	rec.CreatedAt = t
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction. The parent's lock
// is already held by WithTx.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) Get(ctx context.Context, entity generic.EntityType, id string) (*generic.Record, error) {
	return ts.parent.get(ctx, ts.tx, entity, id)
}

func (ts *txStore) List(ctx context.Context, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	return ts.parent.list(ctx, ts.tx, entity, q)
}

func (ts *txStore) Create(ctx context.Context, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	return ts.parent.create(ctx, ts.tx, entity, fields)
}

func (ts *txStore) Update(ctx context.Context, entity generic.EntityType, id string, fields generic.Fields) error {
	return ts.parent.update(ctx, ts.tx, entity, id, fields)
}

func (ts *txStore) Delete(ctx context.Context, entity generic.EntityType, id string) error {
	return ts.parent.delete(ctx, ts.tx, entity, id)
}

func (ts *txStore) Count(ctx context.Context, entity generic.EntityType, q generic.Query) (int, error) {
	recs, err := ts.parent.list(ctx, ts.tx, entity, generic.Query{Where: q.Where})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
