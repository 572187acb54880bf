package trading_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

func debt(id, total, balance string) trading.Purchase {
	return trading.Purchase{
		ID:          id,
		TotalAmount: dec(total),
		CashPaid:    dec(total).Sub(dec(balance)),
		Balance:     dec(balance),
	}
}

// =============================================================================
// PURE ALLOCATION
// =============================================================================

func TestAllocate_OldestFirst(t *testing.T) {
	// GIVEN: Debts of 100, 50 and 30, oldest first
	// WHEN: 120 is tendered with a new order of 40
	// THEN: The first is cleared, the second drops to 30, the third is untouched

	outstanding := []trading.Purchase{
		debt("p1", "100", "100"),
		debt("p2", "50", "50"),
		debt("p3", "30", "30"),
	}

	alloc, err := trading.Allocate(outstanding, dec("120"), dec("40"), t0)
	require.NoError(t, err)

	require.Len(t, alloc.Updates, 2, "third purchase must not be touched")
	assert.Equal(t, 1, alloc.ClearedCount)
	assertDecimal(t, "180", alloc.PreviousBalance, "previous balance")

	first := alloc.Updates[0]
	assert.Equal(t, "p1", first.PurchaseID)
	assertDecimal(t, "100", first.CashPaid, "p1 cash_paid")
	assertDecimal(t, "0", first.Balance, "p1 balance")
	require.NotNil(t, first.PaidDate)
	assert.True(t, first.PaidDate.Equal(t0))
	assert.True(t, first.Cleared)

	second := alloc.Updates[1]
	assert.Equal(t, "p2", second.PurchaseID)
	assertDecimal(t, "20", second.Payment, "p2 payment")
	assertDecimal(t, "20", second.CashPaid, "p2 cash_paid")
	assertDecimal(t, "30", second.Balance, "p2 balance")
	assert.Nil(t, second.PaidDate)
	assert.False(t, second.Cleared)

	assertDecimal(t, "0", alloc.NewPurchase.CashPaid, "new cash_paid")
	assertDecimal(t, "40", alloc.NewPurchase.Balance, "new balance")
	assert.Nil(t, alloc.NewPurchase.PaidDate)
	assertDecimal(t, "0", alloc.Unapplied, "unapplied")
	assertDecimal(t, "120", alloc.AppliedToDebt(), "applied to debt")
}

func TestAllocate_NoDebt_ExcessIsUnapplied(t *testing.T) {
	// GIVEN: A customer with no debt
	// WHEN: 200 is tendered for an order of 150
	// THEN: The order is fully paid and 50 is reported as unapplied

	alloc, err := trading.Allocate(nil, dec("200"), dec("150"), t0)
	require.NoError(t, err)

	assert.Empty(t, alloc.Updates)
	assert.Equal(t, 0, alloc.ClearedCount)
	assertDecimal(t, "150", alloc.NewPurchase.CashPaid, "cash_paid")
	assertDecimal(t, "0", alloc.NewPurchase.Balance, "balance")
	require.NotNil(t, alloc.NewPurchase.PaidDate)
	assertDecimal(t, "50", alloc.Unapplied, "unapplied")
}

func TestAllocate_ZeroTender(t *testing.T) {
	// GIVEN: Existing debt of 80
	// WHEN: Nothing is tendered for an order of 300
	// THEN: No debt is touched and the new purchase is fully unpaid

	alloc, err := trading.Allocate([]trading.Purchase{debt("p1", "80", "80")}, dec("0"), dec("300"), t0)
	require.NoError(t, err)

	assert.Empty(t, alloc.Updates)
	assertDecimal(t, "0", alloc.NewPurchase.CashPaid, "cash_paid")
	assertDecimal(t, "300", alloc.NewPurchase.Balance, "balance")
	assert.Nil(t, alloc.NewPurchase.PaidDate)
}

func TestAllocate_ExactDebtLeavesNewOrderUnpaid(t *testing.T) {
	alloc, err := trading.Allocate(
		[]trading.Purchase{debt("p1", "60", "25"), debt("p2", "35", "35")},
		dec("60"), dec("10"), t0,
	)
	require.NoError(t, err)

	assert.Equal(t, 2, alloc.ClearedCount)
	assertDecimal(t, "60", alloc.Updates[0].CashPaid, "p1 keeps earlier cash")
	assertDecimal(t, "0", alloc.NewPurchase.CashPaid, "new cash_paid")
	assertDecimal(t, "10", alloc.NewPurchase.Balance, "new balance")
}

func TestAllocate_FractionalAmounts(t *testing.T) {
	alloc, err := trading.Allocate([]trading.Purchase{debt("p1", "10.10", "10.10")}, dec("10.35"), dec("0.30"), t0)
	require.NoError(t, err)

	assertDecimal(t, "0", alloc.Updates[0].Balance, "p1 balance")
	assertDecimal(t, "0.25", alloc.NewPurchase.CashPaid, "new cash_paid")
	assertDecimal(t, "0.05", alloc.NewPurchase.Balance, "new balance")
}

func TestAllocate_SkipsSettledEntries(t *testing.T) {
	alloc, err := trading.Allocate(
		[]trading.Purchase{debt("paid", "40", "0"), debt("open", "40", "40")},
		dec("10"), dec("0"), t0,
	)
	require.NoError(t, err)

	require.Len(t, alloc.Updates, 1)
	assert.Equal(t, "open", alloc.Updates[0].PurchaseID)
}

func TestAllocate_OrderDependent(t *testing.T) {
	// GIVEN: The same two debts in opposite orders
	// WHEN: A partial payment is allocated
	// THEN: The debt listed first absorbs the payment

	a := debt("a", "100", "100")
	b := debt("b", "50", "50")

	forward, err := trading.Allocate([]trading.Purchase{a, b}, dec("60"), dec("0"), t0)
	require.NoError(t, err)
	backward, err := trading.Allocate([]trading.Purchase{b, a}, dec("60"), dec("0"), t0)
	require.NoError(t, err)

	assert.Equal(t, 0, forward.ClearedCount)
	assert.Equal(t, "a", forward.Updates[0].PurchaseID)
	assertDecimal(t, "40", forward.Updates[0].Balance, "a after forward")

	assert.Equal(t, 1, backward.ClearedCount)
	assert.Equal(t, "b", backward.Updates[0].PurchaseID)
	assertDecimal(t, "90", backward.Updates[1].Balance, "a after backward")
}

func TestAllocate_RejectsNegativeInputs(t *testing.T) {
	_, err := trading.Allocate(nil, dec("-1"), dec("10"), t0)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = trading.Allocate(nil, dec("1"), dec("-10"), t0)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestAllocate_PreservesBalanceIdentity(t *testing.T) {
	outstanding := []trading.Purchase{
		debt("p1", "75.50", "75.50"),
		debt("p2", "20", "12.25"),
		debt("p3", "300", "300"),
	}
	for _, cash := range []string{"0", "1", "75.5", "80", "87.75", "500"} {
		alloc, err := trading.Allocate(outstanding, dec(cash), dec("42"), t0)
		require.NoError(t, err)

		for _, u := range alloc.Updates {
			assert.False(t, u.Balance.IsNegative(), "cash %s: %s negative", cash, u.PurchaseID)
			assert.Equal(t, u.Balance.IsZero(), u.PaidDate != nil, "cash %s: %s paid_date", cash, u.PurchaseID)
		}
		np := alloc.NewPurchase
		assert.True(t, np.TotalAmount.Sub(np.CashPaid).Equal(np.Balance), "cash %s: new purchase identity", cash)

		// Every unit of cash is either applied or reported.
		applied := alloc.AppliedToDebt().Add(np.CashPaid).Add(alloc.Unapplied)
		assertDecimal(t, cash, applied, "cash "+cash+" accounted")
	}
}

// =============================================================================
// ALLOCATOR (store backed)
// =============================================================================

func TestAllocator_ReadsOutstandingOldestFirst(t *testing.T) {
	// GIVEN: Three purchases for a customer, one of them already paid,
	//        plus another customer's debt
	s := newMemory()
	ctx := context.Background()
	batch := seedBatch(t, s, "B1", "0", "0", "0")
	ada := seedCustomer(t, s, "Ada")
	bob := seedCustomer(t, s, "Bob")

	oldest := seedDebt(t, s, ada, batch.ID, "100", "100")
	seedDebt(t, s, ada, batch.ID, "70", "0")
	newest := seedDebt(t, s, ada, batch.ID, "50", "50")
	seedDebt(t, s, bob, batch.ID, "999", "999")

	// WHEN: Ada tenders 120 against a new order of 10
	alloc, err := trading.NewAllocator(s).WithClock(func() time.Time { return t0 }).
		AllocatePayment(ctx, ada.ID, dec("120"), dec("10"))
	require.NoError(t, err)

	// THEN: Only Ada's open purchases are planned, oldest first
	require.Len(t, alloc.Updates, 2)
	assert.Equal(t, oldest.ID, alloc.Updates[0].PurchaseID)
	assert.Equal(t, newest.ID, alloc.Updates[1].PurchaseID)
	assertDecimal(t, "150", alloc.PreviousBalance, "previous balance")
	assertDecimal(t, "30", alloc.Updates[1].Balance, "newest balance")

	// Nothing is written by planning.
	assertDecimal(t, "100", getPurchase(t, s, oldest.ID).Balance, "oldest untouched")
}

func TestAllocator_TieOnCreatedAtBrokenByID(t *testing.T) {
	// GIVEN: Two debts created at the same instant
	s := newMemory()
	ctx := context.Background()
	ada := seedCustomer(t, s, "Ada")

	for _, id := range []string{"p-b", "p-a"} {
		_, err := s.Create(ctx, trading.EntityPurchases, generic.Fields{
			generic.FieldID:          id,
			generic.FieldCreatedAt:   t0,
			trading.FieldCustomerID:  ada.ID,
			trading.FieldTotalAmount: dec("10"),
			trading.FieldCashPaid:    dec("0"),
			trading.FieldBalance:     dec("10"),
		})
		require.NoError(t, err)
	}

	// WHEN: A payment covering one of them is allocated
	alloc, err := trading.NewAllocator(s).AllocatePayment(ctx, ada.ID, dec("10"), dec("0"))
	require.NoError(t, err)

	// THEN: The lower id wins
	require.Len(t, alloc.Updates, 1)
	assert.Equal(t, "p-a", alloc.Updates[0].PurchaseID)
}

func TestAllocator_EmptyCustomerHasNoDebt(t *testing.T) {
	alloc, err := trading.NewAllocator(newMemory()).AllocatePayment(context.Background(), "", dec("5"), dec("5"))
	require.NoError(t, err)

	assert.Empty(t, alloc.Updates)
	assertDecimal(t, "5", alloc.NewPurchase.CashPaid, "cash_paid")
}
