package trading

import (
	"context"
	"fmt"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// Repository gives typed access to trading records over any generic.Store.
// A Repository built on the store handed to a unit of work reads and writes
// inside that unit of work.
type Repository struct {
	Store generic.Store
}

func NewRepository(s generic.Store) *Repository {
	return &Repository{Store: s}
}

// =============================================================================
// BATCHES & SIZES
// =============================================================================

// GetBatch returns the batch or a *generic.NotFoundError.
func (r *Repository) GetBatch(ctx context.Context, id string) (Batch, error) {
	rec, err := r.mustGet(ctx, EntityBatches, id)
	if err != nil {
		return Batch{}, err
	}
	return BatchFromRecord(*rec), nil
}

func (r *Repository) ListBatches(ctx context.Context, q generic.Query) ([]Batch, error) {
	recs, err := r.Store.List(ctx, EntityBatches, q)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	out := make([]Batch, len(recs))
	for i, rec := range recs {
		out[i] = BatchFromRecord(rec)
	}
	return out, nil
}

func (r *Repository) GetSize(ctx context.Context, id string) (Size, error) {
	rec, err := r.mustGet(ctx, EntitySizes, id)
	if err != nil {
		return Size{}, err
	}
	return SizeFromRecord(*rec), nil
}

// ListSizes returns the sizes of a batch in creation order.
func (r *Repository) ListSizes(ctx context.Context, batchID string) ([]Size, error) {
	recs, err := r.Store.List(ctx, EntitySizes, generic.Where(generic.Eq(FieldBatchID, batchID)))
	if err != nil {
		return nil, fmt.Errorf("list sizes: %w", err)
	}
	out := make([]Size, len(recs))
	for i, rec := range recs {
		out[i] = SizeFromRecord(rec)
	}
	return out, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (r *Repository) GetCustomer(ctx context.Context, id string) (Customer, error) {
	rec, err := r.mustGet(ctx, EntityCustomers, id)
	if err != nil {
		return Customer{}, err
	}
	return CustomerFromRecord(*rec), nil
}

func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	recs, err := r.Store.List(ctx, EntityCustomers, generic.Query{
		OrderBy: []generic.Order{generic.Asc("name")},
	})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]Customer, len(recs))
	for i, rec := range recs {
		out[i] = CustomerFromRecord(rec)
	}
	return out, nil
}

// =============================================================================
// PURCHASES
// =============================================================================

func (r *Repository) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	rec, err := r.mustGet(ctx, EntityPurchases, id)
	if err != nil {
		return Purchase{}, err
	}
	return PurchaseFromRecord(*rec), nil
}

func (r *Repository) ListPurchases(ctx context.Context, q generic.Query) ([]Purchase, error) {
	recs, err := r.Store.List(ctx, EntityPurchases, q)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchasesFromRecords(recs), nil
}

// OutstandingPurchases returns the customer's purchases with balance > 0,
// oldest first. Ties on created_at are broken by id.
func (r *Repository) OutstandingPurchases(ctx context.Context, customerID string) ([]Purchase, error) {
	q := generic.Where(
		generic.Eq(FieldCustomerID, customerID),
		generic.Gt(FieldBalance, 0),
	).Ordered(generic.Asc(generic.FieldCreatedAt))
	return r.ListPurchases(ctx, q)
}

// ListItems returns the items of the given purchases. With no ids it
// returns every item.
func (r *Repository) ListItems(ctx context.Context, purchaseIDs ...string) ([]PurchaseItem, error) {
	recs, err := r.Store.List(ctx, EntityPurchaseItems, generic.Query{})
	if err != nil {
		return nil, fmt.Errorf("list purchase items: %w", err)
	}

	var wanted map[string]bool
	if len(purchaseIDs) > 0 {
		wanted = make(map[string]bool, len(purchaseIDs))
		for _, id := range purchaseIDs {
			wanted[id] = true
		}
	}

	var out []PurchaseItem
	for _, rec := range recs {
		item := PurchaseItemFromRecord(rec)
		if wanted != nil && !wanted[item.PurchaseID] {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// ListNotifications returns notifications newest first. An empty userID
// returns every notification.
func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	q := generic.Query{
		OrderBy: []generic.Order{generic.Desc(generic.FieldCreatedAt)},
		Limit:   limit,
	}
	if userID != "" {
		q.Where = []generic.Condition{generic.Eq(FieldUserID, userID)}
	}
	recs, err := r.Store.List(ctx, EntityNotifications, q)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]Notification, len(recs))
	for i, rec := range recs {
		out[i] = NotificationFromRecord(rec)
	}
	return out, nil
}

func (r *Repository) mustGet(ctx context.Context, entity generic.EntityType, id string) (*generic.Record, error) {
	rec, err := r.Store.Get(ctx, entity, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", entity, id, err)
	}
	if rec == nil {
		return nil, &generic.NotFoundError{Entity: entity, ID: id}
	}
	return rec, nil
}
