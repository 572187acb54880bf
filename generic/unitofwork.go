/*
unitofwork.go - Atomic or compensated multi-record writes

PURPOSE:
  Recording a purchase touches several records (old purchases, the new
  purchase, its items, stock, a notification). A partial write leaves
  balances and stock inconsistent, so those writes run as one unit of work.

STRATEGY:
  1. Store implements TxStore -> run fn inside WithTx. Failure rolls back.
  2. Plain Store -> run fn against a Journal. Every successful write is
     recorded together with its inverse:

       Create(id)        -> Delete(id)
       Update(id, patch) -> Update(id, previous values of patched keys)
       Delete(id)        -> Create(id, previous fields, previous created_at)

     If fn fails, the inverses run newest first. The caller gets a
     *PartialFailureError naming the applied writes and whether every
     inverse succeeded.

  A failure before any write happened is returned unchanged.

LIMITS:
  Compensation is best effort. Another writer may have touched the same
  records in between, which is why settlement also holds a per-customer lock.
  Missing fields cannot be "un-set" by Update, so an inverse patch writes nil
  for keys that did not exist before.

SEE ALSO:
  - store.go: TxStore
  - errors.go: PartialFailureError
*/
package generic

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// STEP - one applied write
// =============================================================================

type StepKind string

const (
	StepCreate StepKind = "create"
	StepUpdate StepKind = "update"
	StepDelete StepKind = "delete"
)

// Step is a write that was applied inside a unit of work.
type Step struct {
	Kind   StepKind
	Entity EntityType
	ID     string

	undo func(ctx context.Context, s Store) error
}

func (s Step) String() string {
	return fmt.Sprintf("%s %s/%s", s.Kind, s.Entity, s.ID)
}

// =============================================================================
// RUN
// =============================================================================

// RunUnitOfWork executes fn so that either all of its writes persist or the
// caller learns exactly which ones did. operation names the work in errors.
func RunUnitOfWork(ctx context.Context, s Store, operation string, fn func(Store) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}

	j := NewJournal(s)
	if err := fn(j); err != nil {
		return j.Compensate(ctx, operation, err)
	}
	return nil
}

// =============================================================================
// JOURNAL - Store wrapper that remembers how to undo its writes
// =============================================================================

// Journal records every successful write made through it.
type Journal struct {
	inner Store

	mu    sync.Mutex
	steps []Step
}

func NewJournal(inner Store) *Journal {
	return &Journal{inner: inner}
}

// Steps returns the writes applied so far, oldest first.
func (j *Journal) Steps() []Step {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Step, len(j.steps))
	copy(out, j.steps)
	return out
}

func (j *Journal) record(s Step) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, s)
}

func (j *Journal) Get(ctx context.Context, entity EntityType, id string) (*Record, error) {
	return j.inner.Get(ctx, entity, id)
}

func (j *Journal) List(ctx context.Context, entity EntityType, q Query) ([]Record, error) {
	return j.inner.List(ctx, entity, q)
}

func (j *Journal) Count(ctx context.Context, entity EntityType, q Query) (int, error) {
	return j.inner.Count(ctx, entity, q)
}

func (j *Journal) Create(ctx context.Context, entity EntityType, fields Fields) (Record, error) {
	rec, err := j.inner.Create(ctx, entity, fields)
	if err != nil {
		return Record{}, err
	}
	j.record(Step{
		Kind:   StepCreate,
		Entity: entity,
		ID:     rec.ID,
		undo: func(ctx context.Context, s Store) error {
			return s.Delete(ctx, entity, rec.ID)
		},
	})
	return rec, nil
}

func (j *Journal) Update(ctx context.Context, entity EntityType, id string, fields Fields) error {
	before, err := j.inner.Get(ctx, entity, id)
	if err != nil {
		return err
	}
	if before == nil {
		return &NotFoundError{Entity: entity, ID: id}
	}
	if err := j.inner.Update(ctx, entity, id, fields); err != nil {
		return err
	}

	previous := make(Fields, len(fields))
	for k := range fields {
		previous[k] = before.Fields[k]
	}
	j.record(Step{
		Kind:   StepUpdate,
		Entity: entity,
		ID:     id,
		undo: func(ctx context.Context, s Store) error {
			return s.Update(ctx, entity, id, previous)
		},
	})
	return nil
}

func (j *Journal) Delete(ctx context.Context, entity EntityType, id string) error {
	before, err := j.inner.Get(ctx, entity, id)
	if err != nil {
		return err
	}
	if before == nil {
		return &NotFoundError{Entity: entity, ID: id}
	}
	if err := j.inner.Delete(ctx, entity, id); err != nil {
		return err
	}

	restore := before.Fields.Clone()
	restore[FieldID] = before.ID
	restore[FieldCreatedAt] = before.CreatedAt
	j.record(Step{
		Kind:   StepDelete,
		Entity: entity,
		ID:     id,
		undo: func(ctx context.Context, s Store) error {
			_, err := s.Create(ctx, entity, restore)
			return err
		},
	})
	return nil
}

// Compensate undoes every recorded write, newest first, and reports the
// outcome. It returns cause unchanged when nothing had been written.
func (j *Journal) Compensate(ctx context.Context, operation string, cause error) error {
	applied := j.Steps()
	if len(applied) == 0 {
		return cause
	}

	pf := &PartialFailureError{
		Operation:   operation,
		Cause:       cause,
		Applied:     applied,
		Compensated: true,
	}
	for i := len(applied) - 1; i >= 0; i-- {
		if err := applied[i].undo(ctx, j.inner); err != nil {
			pf.Compensated = false
			if pf.CompensationErr == nil {
				pf.CompensationErr = fmt.Errorf("undo %s: %w", applied[i], err)
			}
		}
	}
	return pf
}
