/*
summary.go - Dashboard, customer statement and batch detail

PURPOSE:
  The views the shop owner looks at every day. All of them are assembled
  from current records on each call.

DASHBOARD:
  revenue         = sum of total_amount over every purchase
  outstanding     = sum of balance over every purchase
  customers       = number of customer records
  active batches  = batches with is_balanced = false
  profit          = sum of profit over every batch report

CUSTOMER STATEMENT:
  Purchases newest first, each labelled with its batch name ("Deleted Batch"
  when the batch no longer exists), plus a per-size summary of quantity and
  spend grouped by the size name snapshot on each item.

CUSTOMER LIST:
  Every customer newest first with total spent and current balance.

BATCH DETAIL:
  The batch, its sizes, its profitability and its purchases newest first,
  each labelled with the customer's current name ("Unknown" when the
  customer no longer exists).
*/
package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

const (
	deletedBatchName    = "Deleted Batch"
	unknownCustomerName = "Unknown"
)

// =============================================================================
// DASHBOARD
// =============================================================================

type Dashboard struct {
	TotalRevenue  decimal.Decimal
	TotalProfit   decimal.Decimal
	TotalBalance  decimal.Decimal
	CustomerCount int
	ActiveBatches int
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	customers, err := s.repo.Store.Count(ctx, trading.EntityCustomers, generic.Query{})
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	active, err := s.repo.Store.Count(ctx, trading.EntityBatches,
		generic.Where(generic.Eq(trading.FieldIsBalanced, false)))
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	purchases, err := s.repo.ListPurchases(ctx, generic.Query{})
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	batches, err := s.repo.ListBatches(ctx, generic.Query{})
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	revenue := decimal.Zero
	for _, p := range purchases {
		revenue = revenue.Add(p.TotalAmount)
	}

	return Dashboard{
		TotalRevenue:  revenue,
		TotalProfit:   SumReports(ComputeReports(batches, purchases)).Profit,
		TotalBalance:  trading.SumBalances(purchases),
		CustomerCount: customers,
		ActiveBatches: active,
	}, nil
}

// =============================================================================
// CUSTOMER STATEMENT
// =============================================================================

// StatementLine is one purchase on a customer statement.
type StatementLine struct {
	Purchase  trading.Purchase
	BatchName string
	Items     []trading.PurchaseItem
}

// SizeSummary totals what a customer bought of one size name.
type SizeSummary struct {
	SizeName      string
	TotalQuantity int64
	TotalSpent    decimal.Decimal
}

type CustomerStatement struct {
	Customer       trading.Customer
	TotalSpent     decimal.Decimal
	CurrentBalance decimal.Decimal
	OrderCount     int
	Purchases      []StatementLine
	Sizes          []SizeSummary
}

// CustomerStatement returns a *generic.NotFoundError for an unknown customer.
func (s *Service) CustomerStatement(ctx context.Context, customerID string) (CustomerStatement, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return CustomerStatement{}, err
	}

	purchases, err := s.repo.ListPurchases(ctx, generic.Query{
		Where:   []generic.Condition{generic.Eq(trading.FieldCustomerID, customerID)},
		OrderBy: []generic.Order{generic.Desc(generic.FieldCreatedAt)},
	})
	if err != nil {
		return CustomerStatement{}, fmt.Errorf("statement %s: %w", customerID, err)
	}

	batchNames, err := s.batchNames(ctx)
	if err != nil {
		return CustomerStatement{}, fmt.Errorf("statement %s: %w", customerID, err)
	}

	ids := make([]string, len(purchases))
	for i, p := range purchases {
		ids[i] = p.ID
	}
	var items []trading.PurchaseItem
	if len(ids) > 0 {
		items, err = s.repo.ListItems(ctx, ids...)
		if err != nil {
			return CustomerStatement{}, fmt.Errorf("statement %s: %w", customerID, err)
		}
	}
	itemsByPurchase := make(map[string][]trading.PurchaseItem, len(purchases))
	for _, it := range items {
		itemsByPurchase[it.PurchaseID] = append(itemsByPurchase[it.PurchaseID], it)
	}

	st := CustomerStatement{
		Customer:       customer,
		TotalSpent:     decimal.Zero,
		CurrentBalance: trading.SumBalances(purchases),
		OrderCount:     len(purchases),
		Purchases:      make([]StatementLine, len(purchases)),
		Sizes:          SummarizeSizes(items),
	}
	for i, p := range purchases {
		st.TotalSpent = st.TotalSpent.Add(p.TotalAmount)
		name, ok := batchNames[p.BatchID]
		if !ok {
			name = deletedBatchName
		}
		st.Purchases[i] = StatementLine{Purchase: p, BatchName: name, Items: itemsByPurchase[p.ID]}
	}
	return st, nil
}

// CustomerSummary is one row of the customer list.
type CustomerSummary struct {
	Customer       trading.Customer
	TotalSpent     decimal.Decimal
	CurrentBalance decimal.Decimal
}

// CustomerSummaries returns every customer, newest first, with their totals.
func (s *Service) CustomerSummaries(ctx context.Context) ([]CustomerSummary, error) {
	recs, err := s.repo.Store.List(ctx, trading.EntityCustomers,
		generic.Query{}.Ordered(generic.Desc(generic.FieldCreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("customer summaries: %w", err)
	}
	purchases, err := s.repo.ListPurchases(ctx, generic.Query{})
	if err != nil {
		return nil, fmt.Errorf("customer summaries: %w", err)
	}

	byCustomer := make(map[string][]trading.Purchase)
	for _, p := range purchases {
		byCustomer[p.CustomerID] = append(byCustomer[p.CustomerID], p)
	}

	out := make([]CustomerSummary, len(recs))
	for i, rec := range recs {
		c := trading.CustomerFromRecord(rec)
		spent := decimal.Zero
		for _, p := range byCustomer[c.ID] {
			spent = spent.Add(p.TotalAmount)
		}
		out[i] = CustomerSummary{
			Customer:       c,
			TotalSpent:     spent,
			CurrentBalance: trading.SumBalances(byCustomer[c.ID]),
		}
	}
	return out, nil
}

// SummarizeSizes groups items by size name, in the order each name first
// appears.
func SummarizeSizes(items []trading.PurchaseItem) []SizeSummary {
	index := make(map[string]int)
	var out []SizeSummary
	for _, it := range items {
		i, ok := index[it.SizeName]
		if !ok {
			i = len(out)
			index[it.SizeName] = i
			out = append(out, SizeSummary{SizeName: it.SizeName, TotalSpent: decimal.Zero})
		}
		out[i].TotalQuantity += it.Quantity
		out[i].TotalSpent = out[i].TotalSpent.Add(it.LineTotal())
	}
	return out
}

func (s *Service) batchNames(ctx context.Context) (map[string]string, error) {
	batches, err := s.repo.ListBatches(ctx, generic.Query{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(batches))
	for _, b := range batches {
		out[b.ID] = b.Name
	}
	return out, nil
}

// =============================================================================
// BATCH DETAIL
// =============================================================================

type BatchPurchase struct {
	Purchase     trading.Purchase
	CustomerName string
}

type BatchDetail struct {
	Batch     trading.Batch
	Sizes     []trading.Size
	Report    BatchReport
	Purchases []BatchPurchase
}

// BatchDetail returns a *generic.NotFoundError for an unknown batch.
func (s *Service) BatchDetail(ctx context.Context, batchID string) (BatchDetail, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return BatchDetail{}, err
	}
	sizes, err := s.repo.ListSizes(ctx, batchID)
	if err != nil {
		return BatchDetail{}, fmt.Errorf("batch detail %s: %w", batchID, err)
	}
	purchases, err := s.repo.ListPurchases(ctx, generic.Query{
		Where:   []generic.Condition{generic.Eq(trading.FieldBatchID, batchID)},
		OrderBy: []generic.Order{generic.Desc(generic.FieldCreatedAt)},
	})
	if err != nil {
		return BatchDetail{}, fmt.Errorf("batch detail %s: %w", batchID, err)
	}
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return BatchDetail{}, fmt.Errorf("batch detail %s: %w", batchID, err)
	}
	names := make(map[string]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	d := BatchDetail{
		Batch:     batch,
		Sizes:     sizes,
		Report:    ComputeBatchReport(batch, purchases),
		Purchases: make([]BatchPurchase, len(purchases)),
	}
	for i, p := range purchases {
		name, ok := names[p.CustomerID]
		if !ok {
			name = unknownCustomerName
		}
		d.Purchases[i] = BatchPurchase{Purchase: p, CustomerName: name}
	}
	return d, nil
}
