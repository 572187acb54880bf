/*
Package trading implements the batch sales domain: batches of stock split into
sizes, customers buying from them on credit, and the engine that settles old
debt when new cash comes in.

KEY CONCEPTS IN THIS FILE (types.go):
  - Batch: a lot of stock with its cost, tax rate and expenses
  - Size: a sellable SKU within a batch (price, stock)
  - Customer: a buyer who may carry debt across batches
  - Purchase: one sale; total_amount never changes after creation
  - PurchaseItem: one line of a purchase, with name and price snapshotted
  - Notification: an in-app message written when old debts are cleared

PURCHASE INVARIANTS:
  0 <= balance = total_amount - cash_paid
  cash_paid only ever grows
  paid_date is set exactly when balance reaches zero

  A customer's debt is the sum of balance over all of their purchases. It is
  always recomputed from purchases, never stored.

RECORD MAPPING:
  Every type round-trips through generic.Record: XxxFromRecord reads a stored
  record, Fields() produces the fields to write. Field names are the
  snake_case names stored in the record layer.

SEE ALSO:
  - balance.go: outstanding debt
  - allocation.go: oldest-first payment allocation
  - settlement.go: recording a purchase end to end
*/
package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// =============================================================================
// ENTITY TYPES
// =============================================================================

const (
	EntityBatches       generic.EntityType = "batches"
	EntitySizes         generic.EntityType = "sizes"
	EntityCustomers     generic.EntityType = "customers"
	EntityPurchases     generic.EntityType = "purchases"
	EntityPurchaseItems generic.EntityType = "purchase_items"
	EntityNotifications generic.EntityType = "notifications"
)

// Field names used in queries.
const (
	FieldBatchID     = "batch_id"
	FieldCustomerID  = "customer_id"
	FieldPurchaseID  = "purchase_id"
	FieldBalance     = "balance"
	FieldCashPaid    = "cash_paid"
	FieldPaidDate    = "paid_date"
	FieldIsBalanced  = "is_balanced"
	FieldStock       = "stock_quantity"
	FieldUserID      = "user_id"
	FieldTotalAmount = "total_amount"
)

// =============================================================================
// BATCH
// =============================================================================

// Batch is a lot of stock bought at a known cost.
type Batch struct {
	ID         string
	Name       string
	CostPrice  decimal.Decimal
	TaxRate    decimal.Decimal // percent, e.g. 10 means 10%
	Expenses   decimal.Decimal
	IsBalanced bool
	CreatedAt  time.Time
}

func BatchFromRecord(r generic.Record) Batch {
	return Batch{
		ID:         r.ID,
		Name:       r.Fields.String("name"),
		CostPrice:  r.Fields.Decimal("cost_price"),
		TaxRate:    r.Fields.Decimal("tax_rate"),
		Expenses:   r.Fields.Decimal("expenses"),
		IsBalanced: r.Fields.Bool(FieldIsBalanced),
		CreatedAt:  r.CreatedAt,
	}
}

func (b Batch) Fields() generic.Fields {
	return generic.Fields{
		"name":          b.Name,
		"cost_price":    b.CostPrice,
		"tax_rate":      b.TaxRate,
		"expenses":      b.Expenses,
		FieldIsBalanced: b.IsBalanced,
	}
}

// =============================================================================
// SIZE
// =============================================================================

// Size is a sellable SKU within a batch.
type Size struct {
	ID            string
	BatchID       string
	SizeName      string
	Price         decimal.Decimal
	StockQuantity int64
	CreatedAt     time.Time
}

func SizeFromRecord(r generic.Record) Size {
	return Size{
		ID:            r.ID,
		BatchID:       r.Fields.String(FieldBatchID),
		SizeName:      r.Fields.String("size_name"),
		Price:         r.Fields.Decimal("price"),
		StockQuantity: r.Fields.Int(FieldStock),
		CreatedAt:     r.CreatedAt,
	}
}

func (s Size) Fields() generic.Fields {
	return generic.Fields{
		FieldBatchID: s.BatchID,
		"size_name":  s.SizeName,
		"price":      s.Price,
		FieldStock:   s.StockQuantity,
	}
}

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID        string
	Name      string
	Email     string
	Mobile    string
	CreatedAt time.Time
}

func CustomerFromRecord(r generic.Record) Customer {
	return Customer{
		ID:        r.ID,
		Name:      r.Fields.String("name"),
		Email:     r.Fields.String("email"),
		Mobile:    r.Fields.String("mobile"),
		CreatedAt: r.CreatedAt,
	}
}

func (c Customer) Fields() generic.Fields {
	return generic.Fields{
		"name":   c.Name,
		"email":  c.Email,
		"mobile": c.Mobile,
	}
}

// =============================================================================
// PURCHASE
// =============================================================================

// PurchaseStatus is derived from the money fields, never stored.
type PurchaseStatus string

const (
	StatusPaid    PurchaseStatus = "paid"
	StatusPartial PurchaseStatus = "partial"
	StatusUnpaid  PurchaseStatus = "unpaid"
)

// Purchase is a single sale to a customer out of one batch.
type Purchase struct {
	ID           string
	BatchID      string
	CustomerID   string
	CustomerName string // snapshot at creation
	TotalAmount  decimal.Decimal
	CashPaid     decimal.Decimal
	Balance      decimal.Decimal
	PaidDate     *time.Time
	CreatedAt    time.Time
}

func PurchaseFromRecord(r generic.Record) Purchase {
	return Purchase{
		ID:           r.ID,
		BatchID:      r.Fields.String(FieldBatchID),
		CustomerID:   r.Fields.String(FieldCustomerID),
		CustomerName: r.Fields.String("customer_name"),
		TotalAmount:  r.Fields.Decimal(FieldTotalAmount),
		CashPaid:     r.Fields.Decimal(FieldCashPaid),
		Balance:      r.Fields.Decimal(FieldBalance),
		PaidDate:     r.Fields.Time(FieldPaidDate),
		CreatedAt:    r.CreatedAt,
	}
}

func (p Purchase) Fields() generic.Fields {
	return generic.Fields{
		FieldBatchID:     p.BatchID,
		FieldCustomerID:  p.CustomerID,
		"customer_name":  p.CustomerName,
		FieldTotalAmount: p.TotalAmount,
		FieldCashPaid:    p.CashPaid,
		FieldBalance:     p.Balance,
		FieldPaidDate:    p.PaidDate,
	}
}

// Status reports whether the purchase is settled.
func (p Purchase) Status() PurchaseStatus {
	switch {
	case p.Balance.Sign() <= 0:
		return StatusPaid
	case p.CashPaid.Sign() > 0:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// CheckInvariants returns a description of every broken purchase invariant.
func (p Purchase) CheckInvariants() []string {
	var problems []string
	if p.CashPaid.IsNegative() {
		problems = append(problems, "cash_paid is negative")
	}
	if p.Balance.IsNegative() {
		problems = append(problems, "balance is negative")
	}
	if !p.TotalAmount.Sub(p.CashPaid).Equal(p.Balance) {
		problems = append(problems, "balance != total_amount - cash_paid")
	}
	if p.Balance.IsZero() && p.PaidDate == nil {
		problems = append(problems, "settled without paid_date")
	}
	if !p.Balance.IsZero() && p.PaidDate != nil {
		problems = append(problems, "paid_date set on open balance")
	}
	return problems
}

// =============================================================================
// PURCHASE ITEM
// =============================================================================

// PurchaseItem is one line of a purchase. SizeName and PricePerUnit are
// copied from the size at creation and never re-linked.
type PurchaseItem struct {
	ID           string
	PurchaseID   string
	SizeID       string
	SizeName     string
	Quantity     int64
	PricePerUnit decimal.Decimal
	CreatedAt    time.Time
}

func PurchaseItemFromRecord(r generic.Record) PurchaseItem {
	return PurchaseItem{
		ID:           r.ID,
		PurchaseID:   r.Fields.String(FieldPurchaseID),
		SizeID:       r.Fields.String("size_id"),
		SizeName:     r.Fields.String("size_name"),
		Quantity:     r.Fields.Int("quantity"),
		PricePerUnit: r.Fields.Decimal("price_per_unit"),
		CreatedAt:    r.CreatedAt,
	}
}

func (i PurchaseItem) Fields() generic.Fields {
	return generic.Fields{
		FieldPurchaseID:  i.PurchaseID,
		"size_id":        i.SizeID,
		"size_name":      i.SizeName,
		"quantity":       i.Quantity,
		"price_per_unit": i.PricePerUnit,
	}
}

func (i PurchaseItem) LineTotal() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(i.Quantity))
}

// =============================================================================
// NOTIFICATION
// =============================================================================

type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      string
	CreatedAt time.Time
}

func NotificationFromRecord(r generic.Record) Notification {
	return Notification{
		ID:        r.ID,
		UserID:    r.Fields.String(FieldUserID),
		Title:     r.Fields.String("title"),
		Message:   r.Fields.String("message"),
		Type:      r.Fields.String("type"),
		CreatedAt: r.CreatedAt,
	}
}

func (n Notification) Fields() generic.Fields {
	return generic.Fields{
		FieldUserID: n.UserID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      n.Type,
	}
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func purchasesFromRecords(recs []generic.Record) []Purchase {
	out := make([]Purchase, len(recs))
	for i, r := range recs {
		out[i] = PurchaseFromRecord(r)
	}
	return out
}
