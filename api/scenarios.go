/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates batches, sizes,
	customers and purchases that demonstrate specific features.

AVAILABLE SCENARIOS:

	egg-farm:        Two batches, three customers, credit sales and an old
	                 debt cleared by a later cash purchase
	debt-settlement: One customer owing 100, 50 and 30 (oldest first) and a
	                 batch ready for a purchase that settles part of it
	closed-batch:    A sold-out batch marked balanced next to an active one

HOW SCENARIOS WORK:
 1. Reset the store (delete every record of every known entity)
 2. Create batches and sizes
 3. Create customers
 4. Record purchases through the settlement recorder, or seed old debts
    directly with explicit timestamps

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "debt-settlement"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to loadScenario

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: API handlers
  - trading/settlement.go: RecordPurchase
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

const scenarioActor = "admin"

// resetEntities lists every entity a reset clears.
var resetEntities = []generic.EntityType{
	trading.EntityPurchaseItems,
	trading.EntityPurchases,
	trading.EntityNotifications,
	trading.EntitySizes,
	trading.EntityBatches,
	trading.EntityCustomers,
	EntityAuditRuns,
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "egg-farm",
		Name:        "Egg Farm",
		Description: "Two batches, three customers, credit sales and an old debt cleared by a cash purchase",
	},
	{
		ID:          "debt-settlement",
		Name:        "Debt Settlement",
		Description: "Customer owing 100, 50 and 30; tender cash to watch oldest-first settlement",
	},
	{
		ID:          "closed-batch",
		Name:        "Closed Batch",
		Description: "A sold-out batch marked balanced beside an active batch",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase deletes every record.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// loadScenario resets the store and runs the loader for id.
func (h *Handler) loadScenario(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	var err error
	switch id {
	case "egg-farm":
		err = h.loadEggFarmScenario(ctx)
	case "debt-settlement":
		err = h.loadDebtSettlementScenario(ctx)
	case "closed-batch":
		err = h.loadClosedBatchScenario(ctx)
	default:
		return generic.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", id))
	}
	if err != nil {
		return err
	}

	h.currentScenario = id
	h.logger.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// reset deletes every record of every entity the service writes.
func (h *Handler) reset(ctx context.Context) error {
	for _, entity := range resetEntities {
		recs, err := h.Store.List(ctx, entity, generic.Query{})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := h.Store.Delete(ctx, entity, rec.ID); err != nil && !generic.IsNotFound(err) {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadEggFarmScenario(ctx context.Context) error {
	// March Eggs: cost 50,000, tax 7.5%, expenses 5,000
	march, err := h.createBatch(ctx, "March Eggs", "50000", "7.5", "5000")
	if err != nil {
		return err
	}
	jumbo, err := h.createSize(ctx, march, "Jumbo", "2500", 100)
	if err != nil {
		return err
	}
	large, err := h.createSize(ctx, march, "Large", "2000", 150)
	if err != nil {
		return err
	}
	medium, err := h.createSize(ctx, march, "Medium", "1500", 200)
	if err != nil {
		return err
	}

	feed, err := h.createBatch(ctx, "Feed Run", "10000", "0", "1000")
	if err != nil {
		return err
	}
	mash, err := h.createSize(ctx, feed, "Layer Mash 25kg", "12000", 10)
	if err != nil {
		return err
	}

	ada, err := h.createCustomer(ctx, "Ada Okafor", "ada@example.com", "+2348031234567")
	if err != nil {
		return err
	}
	bola, err := h.createCustomer(ctx, "Bola Adeyemi", "", "+2348051234567")
	if err != nil {
		return err
	}
	chinedu, err := h.createCustomer(ctx, "Chinedu Eze", "chinedu@example.com", "")
	if err != nil {
		return err
	}

	sales := []trading.PurchaseRequest{
		// Ada pays 15,000 of 25,000 and owes 10,000.
		{BatchID: march, CustomerID: ada, CashTendered: dec("15000"),
			Items: []trading.PurchaseLine{{SizeID: jumbo, Quantity: 10}}},
		// Bola pays in full.
		{BatchID: march, CustomerID: bola, CashTendered: dec("40000"),
			Items: []trading.PurchaseLine{{SizeID: large, Quantity: 20}}},
		// Chinedu takes everything on credit.
		{BatchID: march, CustomerID: chinedu, CashTendered: dec("0"),
			Items: []trading.PurchaseLine{{SizeID: medium, Quantity: 30}}},
		// Ada brings 22,000: 10,000 clears the old debt, 12,000 pays for the feed.
		{BatchID: feed, CustomerID: ada, CashTendered: dec("22000"),
			Items: []trading.PurchaseLine{{SizeID: mash, Quantity: 1}}},
	}
	return h.recordAll(ctx, sales)
}

func (h *Handler) loadDebtSettlementScenario(ctx context.Context) error {
	batch, err := h.createBatch(ctx, "Settlement Batch", "100", "0", "0")
	if err != nil {
		return err
	}
	if _, err := h.createSize(ctx, batch, "Tray", "40", 50); err != nil {
		return err
	}
	customer, err := h.createCustomer(ctx, "Tunde Bakare", "", "")
	if err != nil {
		return err
	}

	// Old debts, oldest first, a day apart.
	start := time.Now().UTC().AddDate(0, 0, -30).Truncate(time.Second)
	for i, amount := range []string{"100", "50", "30"} {
		p := trading.Purchase{
			BatchID:      batch,
			CustomerID:   customer,
			CustomerName: "Tunde Bakare",
			TotalAmount:  dec(amount),
			CashPaid:     decimal.Zero,
			Balance:      dec(amount),
		}
		fields := p.Fields()
		fields[generic.FieldCreatedAt] = start.AddDate(0, 0, i)
		if _, err := h.Store.Create(ctx, trading.EntityPurchases, fields); err != nil {
			return fmt.Errorf("seed debt %d: %w", i+1, err)
		}
	}
	return nil
}

func (h *Handler) loadClosedBatchScenario(ctx context.Context) error {
	closed, err := h.createBatch(ctx, "January Eggs", "30000", "10", "2000")
	if err != nil {
		return err
	}
	crate, err := h.createSize(ctx, closed, "Crate", "2500", 20)
	if err != nil {
		return err
	}
	active, err := h.createBatch(ctx, "February Eggs", "40000", "10", "2500")
	if err != nil {
		return err
	}
	if _, err := h.createSize(ctx, active, "Crate", "2600", 30); err != nil {
		return err
	}

	emeka, err := h.createCustomer(ctx, "Emeka Obi", "", "")
	if err != nil {
		return err
	}
	ngozi, err := h.createCustomer(ctx, "Ngozi Nwosu", "", "")
	if err != nil {
		return err
	}

	sales := []trading.PurchaseRequest{
		{BatchID: closed, CustomerID: emeka, CashTendered: dec("30000"),
			Items: []trading.PurchaseLine{{SizeID: crate, Quantity: 12}}},
		{BatchID: closed, CustomerID: ngozi, CashTendered: dec("20000"),
			Items: []trading.PurchaseLine{{SizeID: crate, Quantity: 8}}},
	}
	if err := h.recordAll(ctx, sales); err != nil {
		return err
	}

	return h.Store.Update(ctx, trading.EntityBatches, closed, generic.Fields{trading.FieldIsBalanced: true})
}

// =============================================================================
// LOADER HELPERS
// =============================================================================

func (h *Handler) createBatch(ctx context.Context, name, cost, taxRate, expenses string) (string, error) {
	b := trading.Batch{
		Name:      name,
		CostPrice: dec(cost),
		TaxRate:   dec(taxRate),
		Expenses:  dec(expenses),
	}
	rec, err := h.Store.Create(ctx, trading.EntityBatches, b.Fields())
	if err != nil {
		return "", fmt.Errorf("create batch %s: %w", name, err)
	}
	return rec.ID, nil
}

func (h *Handler) createSize(ctx context.Context, batchID, name, price string, stock int64) (string, error) {
	s := trading.Size{
		BatchID:       batchID,
		SizeName:      name,
		Price:         dec(price),
		StockQuantity: stock,
	}
	rec, err := h.Store.Create(ctx, trading.EntitySizes, s.Fields())
	if err != nil {
		return "", fmt.Errorf("create size %s: %w", name, err)
	}
	return rec.ID, nil
}

func (h *Handler) createCustomer(ctx context.Context, name, email, mobile string) (string, error) {
	c := trading.Customer{Name: name, Email: email, Mobile: mobile}
	rec, err := h.Store.Create(ctx, trading.EntityCustomers, c.Fields())
	if err != nil {
		return "", fmt.Errorf("create customer %s: %w", name, err)
	}
	return rec.ID, nil
}

func (h *Handler) recordAll(ctx context.Context, sales []trading.PurchaseRequest) error {
	for i, sale := range sales {
		sale.ActorID = scenarioActor
		if _, err := h.recorder.RecordPurchase(ctx, sale); err != nil {
			return fmt.Errorf("sale %d: %w", i+1, err)
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
