package trading_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/generic/store"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var t0 = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", label, want, got)
}

// steppingClock advances one second per call so created_at never ties.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newMemory() *store.Memory {
	return store.NewMemory().WithClock(steppingClock(t0))
}

func seedBatch(t *testing.T, s generic.Store, name string, cost, taxRate, expenses string) trading.Batch {
	t.Helper()
	b := trading.Batch{Name: name, CostPrice: dec(cost), TaxRate: dec(taxRate), Expenses: dec(expenses)}
	rec, err := s.Create(context.Background(), trading.EntityBatches, b.Fields())
	require.NoError(t, err)
	return trading.BatchFromRecord(rec)
}

func seedSize(t *testing.T, s generic.Store, batchID, name, price string, stock int64) trading.Size {
	t.Helper()
	sz := trading.Size{BatchID: batchID, SizeName: name, Price: dec(price), StockQuantity: stock}
	rec, err := s.Create(context.Background(), trading.EntitySizes, sz.Fields())
	require.NoError(t, err)
	return trading.SizeFromRecord(rec)
}

func seedCustomer(t *testing.T, s generic.Store, name string) trading.Customer {
	t.Helper()
	c := trading.Customer{Name: name, Email: name + "@example.com"}
	rec, err := s.Create(context.Background(), trading.EntityCustomers, c.Fields())
	require.NoError(t, err)
	return trading.CustomerFromRecord(rec)
}

// seedDebt creates an unpaid (or partly paid) purchase with the given balance.
func seedDebt(t *testing.T, s generic.Store, customer trading.Customer, batchID, total, balance string) trading.Purchase {
	t.Helper()
	p := trading.Purchase{
		BatchID:      batchID,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		TotalAmount:  dec(total),
		CashPaid:     dec(total).Sub(dec(balance)),
		Balance:      dec(balance),
	}
	rec, err := s.Create(context.Background(), trading.EntityPurchases, p.Fields())
	require.NoError(t, err)
	return trading.PurchaseFromRecord(rec)
}

func getPurchase(t *testing.T, s generic.Store, id string) trading.Purchase {
	t.Helper()
	p, err := trading.NewRepository(s).GetPurchase(context.Background(), id)
	require.NoError(t, err)
	return p
}

func count(t *testing.T, s generic.Store, entity generic.EntityType) int {
	t.Helper()
	n, err := s.Count(context.Background(), entity, generic.Query{})
	require.NoError(t, err)
	return n
}

func assertPurchaseInvariants(t *testing.T, s generic.Store) {
	t.Helper()
	all, err := trading.NewRepository(s).ListPurchases(context.Background(), generic.Query{})
	require.NoError(t, err)
	for _, p := range all {
		assert.Empty(t, p.CheckInvariants(), "purchase %s", p.ID)
	}
}

// =============================================================================
// FAULTY STORE - injects write failures
// =============================================================================

var errInjected = errors.New("injected store failure")

// faultyStore fails Create for failCreate and Delete for failDelete.
// It is a plain generic.Store, so settlement runs through the journal.
type faultyStore struct {
	generic.Store

	mu         sync.Mutex
	failCreate generic.EntityType
	failDelete generic.EntityType
}

func (f *faultyStore) Create(ctx context.Context, entity generic.EntityType, fields generic.Fields) (generic.Record, error) {
	f.mu.Lock()
	fail := entity == f.failCreate
	f.mu.Unlock()
	if fail {
		return generic.Record{}, errInjected
	}
	return f.Store.Create(ctx, entity, fields)
}

func (f *faultyStore) Delete(ctx context.Context, entity generic.EntityType, id string) error {
	f.mu.Lock()
	fail := entity == f.failDelete
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.Delete(ctx, entity, id)
}
