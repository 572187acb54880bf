/*
settlement.go - Recording a purchase

PURPOSE:
  RecordPurchase is the one write path of the engine. It prices the order,
  lets the allocator settle old debt with the tendered cash, and persists
  everything that follows from it.

FLOW:
  1. Validate the request shape (no store access)
  2. Take the per-customer lock
  3. Load customer, batch and sizes; price the order from current size prices
  4. Inside one unit of work:
       a. read outstanding purchases and plan the allocation
       b. update each touched old purchase (checked against the planned state)
       c. notification "N old debt(s) cleared for NAME." when N > 0
       d. create the new purchase (customer name snapshot)
       e. create one item per line (size name and unit price snapshot)
       f. decrement stock once per distinct size, clamped at zero
  5. Release the lock

FAILURE:
  Nothing is written until step 4. Step 4 runs on a context detached from the
  caller's cancellation.

  With a TxStore the unit of work is a transaction. Otherwise applied writes
  are undone in reverse and the caller gets *generic.PartialFailureError;
  if an undo fails the error says so and the applied steps are logged for
  manual reconciliation.

STOCK:
  Selling more than is in stock is allowed. Stock is clamped at zero and
  the shortfall is logged and returned on the Receipt.

SEE ALSO:
  - allocation.go: the plan
  - generic/unitofwork.go: transaction or compensation
  - lock.go, redislock.go: per-customer serialization
*/
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

const (
	notificationTitle = "Payment Cleared"
	notificationType  = "success"

	unknownCustomerName = "A customer"
)

// =============================================================================
// REQUEST / RECEIPT
// =============================================================================

// PurchaseLine is one requested size and quantity.
type PurchaseLine struct {
	SizeID   string
	Quantity int64
}

// PurchaseRequest is everything needed to record a sale.
type PurchaseRequest struct {
	BatchID      string
	CustomerID   string
	Items        []PurchaseLine
	CashTendered decimal.Decimal
	// ActorID is the user recording the sale. Notifications are addressed to it.
	ActorID string
}

// StockShortfall records a size that sold more than it had in stock.
type StockShortfall struct {
	SizeID    string
	SizeName  string
	Requested int64
	Available int64
}

// Receipt describes what RecordPurchase persisted.
type Receipt struct {
	Purchase     Purchase
	Items        []PurchaseItem
	Allocation   Allocation
	Notification *Notification
	Shortfalls   []StockShortfall
}

// Validate checks the request shape. It does not touch the store.
func (req PurchaseRequest) Validate() error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return generic.NewValidationError("customer_id", "select a customer")
	}
	if strings.TrimSpace(req.BatchID) == "" {
		return generic.NewValidationError("batch_id", "select a batch")
	}
	if len(req.Items) == 0 {
		return generic.NewValidationError("items", "add at least one item")
	}
	for i, line := range req.Items {
		if line.SizeID == "" {
			return generic.NewValidationError(fmt.Sprintf("items[%d].size_id", i), "select a size")
		}
		if line.Quantity <= 0 {
			return generic.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
	}
	if req.CashTendered.IsNegative() {
		return generic.NewValidationError("cash_tendered", "must not be negative")
	}
	return nil
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder persists purchases and their settlement.
type Recorder struct {
	store     generic.Store
	locker    Locker
	allocator *Allocator
	logger    *zap.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

type RecorderOption func(*Recorder)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) RecorderOption {
	return func(r *Recorder) { r.locker = l }
}

func WithLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces the clock used for paid_date. Used by tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(s generic.Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  s,
		locker: NewMemoryLocker(),
		logger: zap.NewNop(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.allocator = NewAllocator(s).WithClock(r.now)
	r.logger = r.logger.Named("settlement")
	return r
}

// Allocator returns the allocator sharing this recorder's store and clock.
func (r *Recorder) Allocator() *Allocator {
	return r.allocator
}

// pricedLine is a validated request line joined with its size.
type pricedLine struct {
	size     Size
	quantity int64
}

// RecordPurchase records a sale and settles the customer's old debt with the
// tendered cash.
func (r *Recorder) RecordPurchase(ctx context.Context, req PurchaseRequest) (Receipt, error) {
	ctx, span := r.tracer.Start(ctx, "trading.RecordPurchase", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.String("batch.id", req.BatchID),
		attribute.Int("purchase.lines", len(req.Items)),
	))
	defer span.End()

	receipt, err := r.recordPurchase(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Receipt{}, err
	}

	span.SetAttributes(
		attribute.String("purchase.id", receipt.Purchase.ID),
		attribute.Int("allocation.cleared", receipt.Allocation.ClearedCount),
	)
	return receipt, nil
}

func (r *Recorder) recordPurchase(ctx context.Context, req PurchaseRequest) (Receipt, error) {
	if err := req.Validate(); err != nil {
		return Receipt{}, err
	}

	log := r.logger.With(
		zap.String("customer_id", req.CustomerID),
		zap.String("batch_id", req.BatchID),
	)

	unlock, err := r.locker.Lock(ctx, customerLockKey(req.CustomerID))
	if err != nil {
		log.Warn("settlement lock not obtained", zap.Error(err))
		return Receipt{}, err
	}
	defer unlock()

	repo := NewRepository(r.store)
	customer, err := repo.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return Receipt{}, err
	}
	batch, err := repo.GetBatch(ctx, req.BatchID)
	if err != nil {
		return Receipt{}, err
	}
	lines, total, err := r.priceLines(ctx, repo, batch, req.Items)
	if err != nil {
		return Receipt{}, err
	}

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	writeCtx := context.WithoutCancel(ctx)

	var receipt Receipt
	err = generic.RunUnitOfWork(writeCtx, r.store, "record purchase", func(s generic.Store) error {
		var applyErr error
		receipt, applyErr = r.apply(writeCtx, NewRepository(s), customer, batch, lines, total, req)
		return applyErr
	})
	if err != nil {
		r.logFailure(log, err)
		return Receipt{}, err
	}

	for _, sf := range receipt.Shortfalls {
		log.Warn("stock shortfall, clamped at zero",
			zap.String("size_id", sf.SizeID),
			zap.String("size_name", sf.SizeName),
			zap.Int64("requested", sf.Requested),
			zap.Int64("available", sf.Available),
		)
	}
	if receipt.Allocation.Unapplied.IsPositive() {
		log.Info("excess cash not applied", zap.String("unapplied", receipt.Allocation.Unapplied.String()))
	}
	log.Info("purchase recorded",
		zap.String("purchase_id", receipt.Purchase.ID),
		zap.String("total", total.String()),
		zap.String("cash_tendered", req.CashTendered.String()),
		zap.String("previous_balance", receipt.Allocation.PreviousBalance.String()),
		zap.Int("cleared", receipt.Allocation.ClearedCount),
	)
	return receipt, nil
}

// priceLines resolves every line against the batch's sizes and sums the
// order at current prices.
func (r *Recorder) priceLines(ctx context.Context, repo *Repository, batch Batch, items []PurchaseLine) ([]pricedLine, decimal.Decimal, error) {
	sizes, err := repo.ListSizes(ctx, batch.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	byID := make(map[string]Size, len(sizes))
	for _, s := range sizes {
		byID[s.ID] = s
	}

	total := decimal.Zero
	lines := make([]pricedLine, 0, len(items))
	for i, item := range items {
		size, ok := byID[item.SizeID]
		if !ok {
			return nil, decimal.Zero, generic.NewValidationError(
				fmt.Sprintf("items[%d].size_id", i),
				fmt.Sprintf("size %q is not part of batch %q", item.SizeID, batch.ID),
			)
		}
		lines = append(lines, pricedLine{size: size, quantity: item.Quantity})
		total = total.Add(size.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return lines, total, nil
}

// apply runs inside the unit of work. Every write goes through repo.Store.
func (r *Recorder) apply(
	ctx context.Context,
	repo *Repository,
	customer Customer,
	batch Batch,
	lines []pricedLine,
	total decimal.Decimal,
	req PurchaseRequest,
) (Receipt, error) {
	alloc, err := r.allocator.allocate(ctx, repo, customer.ID, req.CashTendered, total)
	if err != nil {
		return Receipt{}, err
	}
	r.logger.Debug("allocation planned",
		zap.String("customer_id", customer.ID),
		zap.Int("updates", len(alloc.Updates)),
		zap.Int("cleared", alloc.ClearedCount),
		zap.String("applied_to_debt", alloc.AppliedToDebt().String()),
	)

	receipt := Receipt{Allocation: alloc}

	// Old purchases.
	for _, u := range alloc.Updates {
		if err := r.applyUpdate(ctx, repo, u); err != nil {
			return Receipt{}, err
		}
	}

	// Notification.
	if alloc.ClearedCount > 0 {
		name := customer.Name
		if name == "" {
			name = unknownCustomerName
		}
		n := Notification{
			UserID:  req.ActorID,
			Title:   notificationTitle,
			Message: fmt.Sprintf("%d old debt(s) cleared for %s.", alloc.ClearedCount, name),
			Type:    notificationType,
		}
		rec, err := repo.Store.Create(ctx, EntityNotifications, n.Fields())
		if err != nil {
			return Receipt{}, fmt.Errorf("create notification: %w", err)
		}
		n = NotificationFromRecord(rec)
		receipt.Notification = &n
	}

	// New purchase.
	purchase := Purchase{
		BatchID:      batch.ID,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		TotalAmount:  alloc.NewPurchase.TotalAmount,
		CashPaid:     alloc.NewPurchase.CashPaid,
		Balance:      alloc.NewPurchase.Balance,
		PaidDate:     alloc.NewPurchase.PaidDate,
	}
	rec, err := repo.Store.Create(ctx, EntityPurchases, purchase.Fields())
	if err != nil {
		return Receipt{}, fmt.Errorf("create purchase: %w", err)
	}
	receipt.Purchase = PurchaseFromRecord(rec)

	// Items.
	for _, line := range lines {
		item := PurchaseItem{
			PurchaseID:   receipt.Purchase.ID,
			SizeID:       line.size.ID,
			SizeName:     line.size.SizeName,
			Quantity:     line.quantity,
			PricePerUnit: line.size.Price,
		}
		rec, err := repo.Store.Create(ctx, EntityPurchaseItems, item.Fields())
		if err != nil {
			return Receipt{}, fmt.Errorf("create purchase item: %w", err)
		}
		receipt.Items = append(receipt.Items, PurchaseItemFromRecord(rec))
	}

	// Stock.
	shortfalls, err := decrementStock(ctx, repo, lines)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Shortfalls = shortfalls

	return receipt, nil
}

// applyUpdate writes one planned purchase update after checking that the
// purchase still has the balance the plan was computed from.
func (r *Recorder) applyUpdate(ctx context.Context, repo *Repository, u PurchaseUpdate) error {
	current, err := repo.GetPurchase(ctx, u.PurchaseID)
	if err != nil {
		return err
	}
	planned := u.Balance.Add(u.Payment)
	if !current.Balance.Equal(planned) {
		return fmt.Errorf("%w: purchase %s balance is %s, planned against %s",
			generic.ErrConcurrentModification, u.PurchaseID, current.Balance, planned)
	}
	if err := repo.Store.Update(ctx, EntityPurchases, u.PurchaseID, u.Fields()); err != nil {
		return fmt.Errorf("update purchase %s: %w", u.PurchaseID, err)
	}
	return nil
}

// decrementStock reduces each distinct size once by its total quantity.
func decrementStock(ctx context.Context, repo *Repository, lines []pricedLine) ([]StockShortfall, error) {
	var order []string
	qty := make(map[string]int64)
	for _, line := range lines {
		if _, seen := qty[line.size.ID]; !seen {
			order = append(order, line.size.ID)
		}
		qty[line.size.ID] += line.quantity
	}

	var shortfalls []StockShortfall
	for _, sizeID := range order {
		size, err := repo.GetSize(ctx, sizeID)
		if err != nil {
			return nil, err
		}
		want := qty[sizeID]
		if want > size.StockQuantity {
			shortfalls = append(shortfalls, StockShortfall{
				SizeID:    sizeID,
				SizeName:  size.SizeName,
				Requested: want,
				Available: size.StockQuantity,
			})
		}
		next := max(0, size.StockQuantity-want)
		if err := repo.Store.Update(ctx, EntitySizes, sizeID, generic.Fields{FieldStock: next}); err != nil {
			return nil, fmt.Errorf("update stock of size %s: %w", sizeID, err)
		}
	}
	return shortfalls, nil
}

func (r *Recorder) logFailure(log *zap.Logger, err error) {
	var pf *generic.PartialFailureError
	if !errors.As(err, &pf) {
		if generic.IsClientError(err) || generic.IsNotFound(err) {
			log.Info("purchase rejected", zap.Error(err))
			return
		}
		log.Error("purchase failed, nothing persisted", zap.Error(err))
		return
	}

	steps := make([]string, len(pf.Applied))
	for i, s := range pf.Applied {
		steps[i] = s.String()
	}
	fields := []zap.Field{
		zap.Error(pf.Cause),
		zap.Strings("applied", steps),
		zap.Bool("compensated", pf.Compensated),
	}
	if pf.Compensated {
		log.Error("purchase failed part way, writes undone", fields...)
		return
	}
	fields = append(fields, zap.NamedError("compensation_error", pf.CompensationErr))
	log.Error("purchase failed part way, MANUAL RECONCILIATION REQUIRED", fields...)
}
