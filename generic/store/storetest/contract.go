// Package storetest holds the behavior every generic.Store implementation
// must share. Each store package runs it from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// Epoch is the first instant handed out by SteppingClock.
var Epoch = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// SteppingClock returns a clock that advances one second per call, starting
// one second after Epoch.
func SteppingClock() func() time.Time {
	current := Epoch
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

// Run exercises s against the Store contract. newStore must return an empty
// store whose clock comes from SteppingClock.
func Run(t *testing.T, newStore func(t *testing.T) generic.Store) {
	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.Get(context.Background(), "purchases", "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("CreateAssignsIDAndTimestamp", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.Create(ctx, "purchases", generic.Fields{"total_amount": 10})
		require.NoError(t, err)
		b, err := s.Create(ctx, "purchases", generic.Fields{"total_amount": 10})
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
		assert.True(t, a.CreatedAt.Before(b.CreatedAt))
		assert.NotContains(t, a.Fields, generic.FieldID)
	})

	t.Run("CreateHonoursOverrides", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		at := Epoch.Add(-24 * time.Hour)

		_, err := s.Create(ctx, "batches", generic.Fields{
			generic.FieldID:        "batch-1",
			generic.FieldCreatedAt: at,
			"name":                 "March Eggs",
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "batches", "batch-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.CreatedAt.Equal(at))
		assert.Equal(t, "March Eggs", got.Fields["name"])
		assert.NotContains(t, got.Fields, generic.FieldCreatedAt)
	})

	t.Run("ValuesRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		paid := Epoch.Add(90 * time.Minute)

		created, err := s.Create(ctx, "purchases", generic.Fields{
			"customer_name": "Ada",
			"quantity":      int64(7),
			"balance":       decimal.RequireFromString("12.35"),
			"is_balanced":   true,
			"paid_date":     paid,
			"note":          nil,
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "purchases", created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Ada", got.Fields.String("customer_name"))
		assert.Equal(t, int64(7), got.Fields.Int("quantity"))
		assert.True(t, decimal.RequireFromString("12.35").Equal(got.Fields.Decimal("balance")))
		assert.True(t, got.Fields.Bool("is_balanced"))
		require.NotNil(t, got.Fields.Time("paid_date"))
		assert.True(t, paid.Equal(*got.Fields.Time("paid_date")))
		assert.Nil(t, got.Fields["note"])
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("UpdateIsPartial", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec, err := s.Create(ctx, "sizes", generic.Fields{"size_name": "Large", "stock_quantity": 10})
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "sizes", rec.ID, generic.Fields{
			"stock_quantity":       4,
			generic.FieldCreatedAt: Epoch.Add(time.Hour),
		}))

		got, err := s.Get(ctx, "sizes", rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "Large", got.Fields["size_name"])
		assert.Equal(t, int64(4), got.Fields["stock_quantity"])
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt), "created_at is immutable")
	})

	t.Run("MissingRecordWrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.Update(ctx, "sizes", "nope", generic.Fields{"x": 1})
		assert.True(t, generic.IsNotFound(err))
		err = s.Delete(ctx, "sizes", "nope")
		assert.True(t, generic.IsNotFound(err))
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec, err := s.Create(ctx, "notifications", generic.Fields{"title": "x"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "notifications", rec.ID))

		got, err := s.Get(ctx, "notifications", rec.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListFiltersOrdersAndCounts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, f := range []generic.Fields{
			{"customer_id": "c1", "balance": 100},
			{"customer_id": "c1", "balance": 0},
			{"customer_id": "c2", "balance": 5},
			{"customer_id": "c1", "balance": 30},
		} {
			_, err := s.Create(ctx, "purchases", f)
			require.NoError(t, err)
		}
		_, err := s.Create(ctx, "batches", generic.Fields{"customer_id": "c1", "balance": 1})
		require.NoError(t, err)

		open := generic.Where(generic.Eq("customer_id", "c1"), generic.Gt("balance", 0))

		oldestFirst, err := s.List(ctx, "purchases", open.Ordered(generic.Asc(generic.FieldCreatedAt)))
		require.NoError(t, err)
		require.Len(t, oldestFirst, 2)
		assert.Equal(t, int64(100), oldestFirst[0].Fields.Int("balance"))
		assert.Equal(t, int64(30), oldestFirst[1].Fields.Int("balance"))

		limited := open.Ordered(generic.Desc("balance"))
		limited.Limit = 1
		top, err := s.List(ctx, "purchases", limited)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, int64(100), top[0].Fields.Int("balance"))

		n, err := s.Count(ctx, "purchases", limited)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "count ignores limit")
	})

	t.Run("Transactions", func(t *testing.T) {
		ts, ok := newStore(t).(generic.TxStore)
		if !ok {
			t.Skip("store is not transactional")
		}
		ctx := context.Background()
		errRollback := errors.New("rollback")

		err := ts.WithTx(ctx, func(tx generic.Store) error {
			rec, err := tx.Create(ctx, "purchases", generic.Fields{"balance": 1})
			if err != nil {
				return err
			}
			seen, err := tx.Get(ctx, "purchases", rec.ID)
			if err != nil {
				return err
			}
			assert.NotNil(t, seen, "writes are visible inside the transaction")
			return errRollback
		})
		assert.ErrorIs(t, err, errRollback)

		n, err := ts.Count(ctx, "purchases", generic.Query{})
		require.NoError(t, err)
		assert.Zero(t, n, "rolled back")

		require.NoError(t, ts.WithTx(ctx, func(tx generic.Store) error {
			_, err := tx.Create(ctx, "purchases", generic.Fields{"balance": 1})
			return err
		}))
		n, err = ts.Count(ctx, "purchases", generic.Query{})
		require.NoError(t, err)
		assert.Equal(t, 1, n, "committed")
	})
}
