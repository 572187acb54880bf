// Package store provides Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a plain generic.Store. It deliberately does not implement
// generic.TxStore; wrap it in TxMemory for transactional behavior.
type Memory struct {
	mu      sync.RWMutex
	records map[generic.EntityType]map[string]generic.Record
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[generic.EntityType]map[string]generic.Record),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to stamp created_at. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, entity generic.EntityType, id string) (*generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(entity, id), nil
}

func (m *Memory) List(_ context.Context, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(entity, q), nil
}

func (m *Memory) Create(_ context.Context, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(entity, fields)
}

func (m *Memory) Update(_ context.Context, entity generic.EntityType, id string, fields generic.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(entity, id, fields)
}

func (m *Memory) Delete(_ context.Context, entity generic.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(entity, id)
}

func (m *Memory) Count(_ context.Context, entity generic.EntityType, q generic.Query) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listLocked(entity, generic.Query{Where: q.Where})), nil
}

func (m *Memory) getLocked(entity generic.EntityType, id string) *generic.Record {
	rec, ok := m.records[entity][id]
	if !ok {
		return nil
	}
	out := rec.Clone()
	return &out
}

func (m *Memory) listLocked(entity generic.EntityType, q generic.Query) []generic.Record {
	all := make([]generic.Record, 0, len(m.records[entity]))
	for _, rec := range m.records[entity] {
		all = append(all, rec.Clone())
	}
	return q.Apply(all)
}

func (m *Memory) createLocked(entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	rec, err := generic.PrepareCreate(entity, fields, uuid.NewString, m.now())
	if err != nil {
		return generic.Record{}, err
	}
	if m.records[entity] == nil {
		m.records[entity] = make(map[string]generic.Record)
	}
	m.records[entity][rec.ID] = rec
	return rec.Clone(), nil
}

func (m *Memory) updateLocked(entity generic.EntityType, id string, fields generic.Fields) error {
	rec, ok := m.records[entity][id]
	if !ok {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	patch, err := generic.PrepareUpdate(fields)
	if err != nil {
		return err
	}
	rec.Fields = rec.Fields.Merge(patch)
	m.records[entity][id] = rec
	return nil
}

func (m *Memory) deleteLocked(entity generic.EntityType, id string) error {
	if _, ok := m.records[entity][id]; !ok {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	delete(m.records[entity], id)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	txStore := &txMemoryView{parent: tm}

	if err := fn(txStore); err != nil {
		tm.records = snapshot
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() map[generic.EntityType]map[string]generic.Record {
	out := make(map[generic.EntityType]map[string]generic.Record, len(tm.records))
	for entity, recs := range tm.records {
		copied := make(map[string]generic.Record, len(recs))
		for id, rec := range recs {
			copied[id] = rec.Clone()
		}
		out[entity] = copied
	}
	return out
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Get(_ context.Context, entity generic.EntityType, id string) (*generic.Record, error) {
	return tv.parent.getLocked(entity, id), nil
}

func (tv *txMemoryView) List(_ context.Context, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	return tv.parent.listLocked(entity, q), nil
}

func (tv *txMemoryView) Create(_ context.Context, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	return tv.parent.createLocked(entity, fields)
}

func (tv *txMemoryView) Update(_ context.Context, entity generic.EntityType, id string, fields generic.Fields) error {
	return tv.parent.updateLocked(entity, id, fields)
}

func (tv *txMemoryView) Delete(_ context.Context, entity generic.EntityType, id string) error {
	return tv.parent.deleteLocked(entity, id)
}

func (tv *txMemoryView) Count(_ context.Context, entity generic.EntityType, q generic.Query) (int, error) {
	return len(tv.parent.listLocked(entity, generic.Query{Where: q.Where})), nil
}
