/*
Package reports derives read-only views from trading records: per-batch
profitability, the dashboard and customer statements.

PROFITABILITY (profitability.go):

	revenue = sum of total_amount over the batch's purchases
	tax     = revenue * tax_rate / 100
	profit  = revenue - cost_price - expenses - tax
	tithe   = profit * 10%   when profit > 0, else 0
	margin  = profit / revenue * 100   when revenue > 0, else 0

  Revenue counts what was billed, not what was collected. Unpaid balances
  still count toward revenue and profit.

  Reports are always computed from current records; nothing is cached.

SEE ALSO:
  - summary.go: dashboard, customer statement, batch detail
  - trading/types.go: Batch, Purchase
*/
package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

// TitheRate is the share of positive profit set aside as tithe.
var TitheRate = decimal.RequireFromString("0.10")

// =============================================================================
// BATCH REPORT
// =============================================================================

// BatchReport is the profitability of one batch.
type BatchReport struct {
	BatchID    string
	Name       string
	Revenue    decimal.Decimal
	Cost       decimal.Decimal
	Expenses   decimal.Decimal
	Tax        decimal.Decimal
	Profit     decimal.Decimal
	Tithe      decimal.Decimal
	Margin     decimal.Decimal // percent of revenue
	IsBalanced bool
}

// ComputeBatchReport computes the report for batch. Purchases of other
// batches are ignored, so callers may pass the full purchase list.
func ComputeBatchReport(batch trading.Batch, purchases []trading.Purchase) BatchReport {
	revenue := decimal.Zero
	for _, p := range purchases {
		if p.BatchID == batch.ID {
			revenue = revenue.Add(p.TotalAmount)
		}
	}

	tax := revenue.Mul(batch.TaxRate).Div(generic.Hundred)
	profit := revenue.Sub(batch.CostPrice).Sub(batch.Expenses).Sub(tax)

	tithe := decimal.Zero
	if profit.IsPositive() {
		tithe = profit.Mul(TitheRate)
	}

	margin := decimal.Zero
	if revenue.IsPositive() {
		margin = profit.Div(revenue).Mul(generic.Hundred)
	}

	return BatchReport{
		BatchID:    batch.ID,
		Name:       batch.Name,
		Revenue:    revenue,
		Cost:       batch.CostPrice,
		Expenses:   batch.Expenses,
		Tax:        tax,
		Profit:     profit,
		Tithe:      tithe,
		Margin:     margin,
		IsBalanced: batch.IsBalanced,
	}
}

// ComputeReports returns one report per batch, in the order given.
func ComputeReports(batches []trading.Batch, purchases []trading.Purchase) []BatchReport {
	byBatch := make(map[string][]trading.Purchase, len(batches))
	for _, p := range purchases {
		byBatch[p.BatchID] = append(byBatch[p.BatchID], p)
	}

	out := make([]BatchReport, len(batches))
	for i, b := range batches {
		out[i] = ComputeBatchReport(b, byBatch[b.ID])
	}
	return out
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals aggregates a set of batch reports.
type Totals struct {
	Revenue  decimal.Decimal
	Profit   decimal.Decimal
	Tithe    decimal.Decimal
	Expenses decimal.Decimal // expenses plus tax
}

func SumReports(reports []BatchReport) Totals {
	t := Totals{
		Revenue:  decimal.Zero,
		Profit:   decimal.Zero,
		Tithe:    decimal.Zero,
		Expenses: decimal.Zero,
	}
	for _, r := range reports {
		t.Revenue = t.Revenue.Add(r.Revenue)
		t.Profit = t.Profit.Add(r.Profit)
		t.Tithe = t.Tithe.Add(r.Tithe)
		t.Expenses = t.Expenses.Add(r.Expenses).Add(r.Tax)
	}
	return t
}

// =============================================================================
// SERVICE - store backed
// =============================================================================

// Service reads trading records and builds reports.
type Service struct {
	repo *trading.Repository
}

func NewService(s generic.Store) *Service {
	return &Service{repo: trading.NewRepository(s)}
}

// BatchReports returns a report for every batch, newest batch first.
func (s *Service) BatchReports(ctx context.Context) ([]BatchReport, error) {
	batches, err := s.repo.ListBatches(ctx, generic.Query{}.Ordered(generic.Desc(generic.FieldCreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("batch reports: %w", err)
	}
	purchases, err := s.repo.ListPurchases(ctx, generic.Query{})
	if err != nil {
		return nil, fmt.Errorf("batch reports: %w", err)
	}
	return ComputeReports(batches, purchases), nil
}

// BatchReport returns the report for one batch.
func (s *Service) BatchReport(ctx context.Context, batchID string) (BatchReport, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return BatchReport{}, err
	}
	purchases, err := s.repo.ListPurchases(ctx, generic.Where(generic.Eq(trading.FieldBatchID, batchID)))
	if err != nil {
		return BatchReport{}, fmt.Errorf("batch report %s: %w", batchID, err)
	}
	return ComputeBatchReport(batch, purchases), nil
}
