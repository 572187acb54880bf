/*
Package postgres provides a gorm-backed implementation of the storage interfaces.

PURPOSE:
  Same contract and table shape as store/sqlite, for deployments that run
  against Postgres. Records share one "ledger_records" table whose fields
  column holds the tagged JSON from generic/codec.go (jsonb via
  gorm.io/datatypes).

TRACING:
  Open installs the otelgorm plugin so every statement becomes a span under
  the caller's context (RecordPurchase, AllocatePayment, ...). With no
  tracer provider configured the spans are no-ops.

QUERIES:
  Rows are selected by entity_type and filtered/ordered in Go with
  generic.Query.Apply, exactly like the SQLite store.

USAGE:
  store, err := postgres.Open("host=localhost user=postgres dbname=batches sslmode=disable")

  // Any gorm dialector works, which is how the tests run on SQLite:
  db, _ := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
  store, err := postgres.New(db)
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/datatypes"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// recordRow is the persisted shape of a generic.Record.
type recordRow struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	EntityType string         `gorm:"type:varchar(64);not null;index:idx_ledger_records_entity_created,priority:1"`
	Fields     datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;index:idx_ledger_records_entity_created,priority:2"`
	UpdatedAt  time.Time
}

func (recordRow) TableName() string { return "ledger_records" }

// Store implements generic.TxStore on top of gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to Postgres, installs tracing and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, fmt.Errorf("failed to install tracing: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// WithClock replaces the clock used to stamp created_at. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =============================================================================
// RECORD STORE (generic.Store interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, entity generic.EntityType, id string) (*generic.Record, error) {
	var row recordRow
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND id = ?", string(entity), id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", entity, id, err)
	}

	rec, err := toRecord(entity, row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) List(ctx context.Context, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("entity_type = ?", string(entity)).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", entity, err)
	}

	records := make([]generic.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(entity, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return q.Apply(records), nil
}

func (s *Store) Create(ctx context.Context, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	rec, err := generic.PrepareCreate(entity, fields, uuid.NewString, s.now())
	if err != nil {
		return generic.Record{}, err
	}
	encoded, err := generic.EncodeFields(rec.Fields)
	if err != nil {
		return generic.Record{}, err
	}

	row := recordRow{
		ID:         rec.ID,
		EntityType: string(entity),
		Fields:     datatypes.JSON(encoded),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return generic.Record{}, fmt.Errorf("failed to create %s: %w", entity, err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, entity generic.EntityType, id string, fields generic.Fields) error {
	patch, err := generic.PrepareUpdate(fields)
	if err != nil {
		return err
	}

	current, err := s.Get(ctx, entity, id)
	if err != nil {
		return err
	}
	if current == nil {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}

	encoded, err := generic.EncodeFields(current.Fields.Merge(patch))
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Model(&recordRow{}).
		Where("entity_type = ? AND id = ?", string(entity), id).
		Updates(map[string]any{
			"fields":     datatypes.JSON(encoded),
			"updated_at": s.now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entity, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, entity generic.EntityType, id string) error {
	res := s.db.WithContext(ctx).
		Where("entity_type = ? AND id = ?", string(entity), id).
		Delete(&recordRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s %s: %w", entity, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func (s *Store) Count(ctx context.Context, entity generic.EntityType, q generic.Query) (int, error) {
	recs, err := s.List(ctx, entity, generic.Query{Where: q.Where})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx runs fn inside a gorm transaction. fn sees a Store bound to the tx.
func (s *Store) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, now: s.now})
	})
}

func toRecord(entity generic.EntityType, row recordRow) (generic.Record, error) {
	fields, err := generic.DecodeFields(row.Fields)
	if err != nil {
		return generic.Record{}, fmt.Errorf("record %s: %w", row.ID, err)
	}
	return generic.Record{
		ID:        row.ID,
		Type:      entity,
		Fields:    fields,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}
