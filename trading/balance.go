/*
balance.go - Customer debt

PURPOSE:
  A customer's outstanding balance is the sum of balance over every purchase
  they have made, in any batch. It is read from persisted purchases on every
  call so it reflects the latest settlement.

EDGE CASES:
  - Empty customer id -> 0, no store call
  - No purchases      -> 0
  - Purchases with balance 0 contribute nothing

SEE ALSO:
  - allocation.go: consumes outstanding purchases oldest first
*/
package trading

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// BalanceCalculator computes customer debt from the store.
type BalanceCalculator struct {
	repo *Repository
}

func NewBalanceCalculator(s generic.Store) *BalanceCalculator {
	return &BalanceCalculator{repo: NewRepository(s)}
}

// OutstandingBalance returns the customer's total unpaid balance.
func (c *BalanceCalculator) OutstandingBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	if customerID == "" {
		return decimal.Zero, nil
	}
	purchases, err := c.repo.ListPurchases(ctx, generic.Where(generic.Eq(FieldCustomerID, customerID)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("outstanding balance for %s: %w", customerID, err)
	}
	return SumBalances(purchases), nil
}

// SumBalances adds up balance over purchases. The result does not depend on order.
func SumBalances(purchases []Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purchases {
		total = total.Add(p.Balance)
	}
	return total
}
