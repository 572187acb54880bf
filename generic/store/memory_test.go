package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/generic/store"
	"github.com/Udokachinonso/batchbalance-pro/generic/store/storetest"
)

func TestMemory_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) generic.Store {
		return store.NewMemory().WithClock(storetest.SteppingClock())
	})
}

func TestTxMemory_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) generic.Store {
		s := store.NewTxMemory()
		s.WithClock(storetest.SteppingClock())
		return s
	})
}

func TestMemory_IsNotTransactional(t *testing.T) {
	var s generic.Store = store.NewMemory()
	_, ok := s.(generic.TxStore)
	assert.False(t, ok, "settlement must fall back to the journal on a plain Memory")
}

func TestMemory_ReturnedRecordsAreCopies(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	rec, err := s.Create(ctx, "sizes", generic.Fields{"stock_quantity": 10})
	require.NoError(t, err)
	rec.Fields["stock_quantity"] = int64(0)

	got, err := s.Get(ctx, "sizes", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Fields["stock_quantity"])
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, "purchases", generic.Fields{"balance": 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx, "purchases", generic.Query{})
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}
