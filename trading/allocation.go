/*
allocation.go - Oldest-first payment allocation

PURPOSE:
  When a customer hands over cash while buying, the cash first pays down their
  existing debt, oldest purchase first. Whatever is left goes toward the new
  order. This file computes that plan without writing anything.

ALGORITHM:
  remaining = cash tendered
  if the customer has debt and remaining > 0:
      for each purchase with balance > 0, oldest first:
          payment   = min(remaining, balance)
          cash_paid += payment
          balance   -= payment
          balance == 0 -> paid_date = now, cleared++
          remaining -= payment
          stop when remaining == 0
  new purchase:
      cash_paid = min(remaining, total)
      balance   = max(0, total - remaining)
      paid_date = now iff balance == 0

  Cash beyond old debt plus the new total is reported as Unapplied. It is not
  credited anywhere.

EXAMPLE:
  Debts [100, 50, 30] (oldest first), cash 120, new total 40:
    purchase 1: paid 100, balance 0, cleared
    purchase 2: paid 20,  balance 30
    purchase 3: untouched
    new purchase: cash_paid 0, balance 40

ORDER:
  Allocate trusts the order it is given. Allocator.AllocatePayment always
  supplies created_at ascending with id as the tie-break.

SEE ALSO:
  - settlement.go: applies an Allocation
*/
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

const tracerName = "github.com/Udokachinonso/batchbalance-pro/trading"

// =============================================================================
// ALLOCATION RESULT
// =============================================================================

// PurchaseUpdate is the new state of one existing purchase.
type PurchaseUpdate struct {
	PurchaseID string
	Payment    decimal.Decimal
	CashPaid   decimal.Decimal
	Balance    decimal.Decimal
	PaidDate   *time.Time
	Cleared    bool
}

// Fields is the partial update to write for this purchase.
func (u PurchaseUpdate) Fields() generic.Fields {
	return generic.Fields{
		FieldCashPaid: u.CashPaid,
		FieldBalance:  u.Balance,
		FieldPaidDate: u.PaidDate,
	}
}

// NewPurchaseTerms are the money fields of the purchase being created.
type NewPurchaseTerms struct {
	TotalAmount decimal.Decimal
	CashPaid    decimal.Decimal
	Balance     decimal.Decimal
	PaidDate    *time.Time
}

// Allocation is the full settlement plan for one tender of cash.
type Allocation struct {
	PreviousBalance decimal.Decimal
	Updates         []PurchaseUpdate
	ClearedCount    int
	NewPurchase     NewPurchaseTerms
	Unapplied       decimal.Decimal
}

// AppliedToDebt is the part of the cash that went to old purchases.
func (a Allocation) AppliedToDebt() decimal.Decimal {
	total := decimal.Zero
	for _, u := range a.Updates {
		total = total.Add(u.Payment)
	}
	return total
}

// =============================================================================
// PURE ALLOCATION
// =============================================================================

// Allocate computes the settlement plan. outstanding must be oldest first;
// entries with balance <= 0 are ignored.
func Allocate(outstanding []Purchase, cash, total decimal.Decimal, now time.Time) (Allocation, error) {
	if cash.IsNegative() {
		return Allocation{}, generic.NewValidationError("cash_tendered", "must not be negative")
	}
	if total.IsNegative() {
		return Allocation{}, generic.NewValidationError("total_amount", "must not be negative")
	}

	paidAt := now.UTC()
	alloc := Allocation{PreviousBalance: SumBalances(outstanding)}
	remaining := cash

	if alloc.PreviousBalance.IsPositive() && remaining.IsPositive() {
		for _, p := range outstanding {
			if !remaining.IsPositive() {
				break
			}
			if !p.Balance.IsPositive() {
				continue
			}

			payment := generic.MinDecimal(remaining, p.Balance)
			u := PurchaseUpdate{
				PurchaseID: p.ID,
				Payment:    payment,
				CashPaid:   p.CashPaid.Add(payment),
				Balance:    p.Balance.Sub(payment),
				PaidDate:   p.PaidDate,
			}
			if u.Balance.IsZero() {
				u.PaidDate = &paidAt
				u.Cleared = true
				alloc.ClearedCount++
			}
			alloc.Updates = append(alloc.Updates, u)
			remaining = remaining.Sub(payment)
		}
	}

	alloc.NewPurchase = NewPurchaseTerms{
		TotalAmount: total,
		CashPaid:    generic.MinDecimal(remaining, total),
		Balance:     generic.MaxDecimal(decimal.Zero, total.Sub(remaining)),
	}
	if alloc.NewPurchase.Balance.IsZero() {
		alloc.NewPurchase.PaidDate = &paidAt
	}
	alloc.Unapplied = generic.MaxDecimal(decimal.Zero, remaining.Sub(total))

	return alloc, nil
}

// =============================================================================
// ALLOCATOR - reads debt from the store, then allocates
// =============================================================================

// Allocator plans payments against the current persisted debt.
type Allocator struct {
	repo   *Repository
	now    func() time.Time
	tracer trace.Tracer
}

func NewAllocator(s generic.Store) *Allocator {
	return &Allocator{
		repo:   NewRepository(s),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
}

// WithClock replaces the clock used for paid_date. Used by tests.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// AllocatePayment plans how cashTendered settles the customer's debt and a
// new order of newOrderTotal. Nothing is written.
func (a *Allocator) AllocatePayment(ctx context.Context, customerID string, cashTendered, newOrderTotal decimal.Decimal) (Allocation, error) {
	ctx, span := a.tracer.Start(ctx, "trading.AllocatePayment",
		trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	alloc, err := a.allocate(ctx, a.repo, customerID, cashTendered, newOrderTotal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Allocation{}, err
	}

	span.SetAttributes(
		attribute.Int("allocation.cleared", alloc.ClearedCount),
		attribute.Int("allocation.updates", len(alloc.Updates)),
	)
	return alloc, nil
}

func (a *Allocator) allocate(ctx context.Context, repo *Repository, customerID string, cash, total decimal.Decimal) (Allocation, error) {
	var outstanding []Purchase
	if customerID != "" {
		var err error
		outstanding, err = repo.OutstandingPurchases(ctx, customerID)
		if err != nil {
			return Allocation{}, fmt.Errorf("allocate payment for %s: %w", customerID, err)
		}
	}
	return Allocate(outstanding, cash, total, a.now())
}
