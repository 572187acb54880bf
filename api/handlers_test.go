/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Customer, batch and size CRUD, including validation and 404s
- Recording a purchase end to end through the router
- Allocation preview
- Reports, dashboard and notifications
- Error to status mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

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

func newTestStore() *store.TxMemory {
	s := store.NewTxMemory()
	s.WithClock(steppingClock(time.Now().UTC().Truncate(time.Second)))
	return s
}

type testServer struct {
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T, opts ...HandlerOption) *testServer {
	t.Helper()
	h := NewHandler(newTestStore(), opts...)
	return &testServer{h: h, router: NewRouter(h, DefaultRouterConfig())}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// mustDo asserts the status and decodes the body into out (if not nil).
func (ts *testServer) mustDo(t *testing.T, method, path string, body any, status int, out any) {
	t.Helper()
	rec := ts.do(t, method, path, body)
	require.Equalf(t, status, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", label, want, got)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCreateCustomer_NormalizesMobile(t *testing.T) {
	ts := newTestServer(t)

	var c CustomerDTO
	ts.mustDo(t, http.MethodPost, "/api/customers", map[string]string{
		"name":   "  Ada Okafor ",
		"email":  "ada@example.com",
		"mobile": "0803 123 4567",
	}, http.StatusCreated, &c)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Ada Okafor", c.Name)
	assert.Equal(t, "+2348031234567", c.Mobile)

	var got CustomerDTO
	ts.mustDo(t, http.MethodGet, "/api/customers/"+c.ID, nil, http.StatusOK, &got)
	assert.Equal(t, c, got)
}

func TestCreateCustomer_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantField string
	}{
		{"missing name", map[string]string{"email": "x@example.com"}, "name"},
		{"bad email", map[string]string{"name": "Ada", "email": "not-an-email"}, "email"},
		{"bad mobile", map[string]string{"name": "Ada", "mobile": "12"}, "mobile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(t, http.MethodPost, "/api/customers", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			require.NotEmpty(t, resp.Fields)
			assert.Equal(t, tt.wantField, resp.Fields[0].Field)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/customers", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCustomer_NotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/customers/nope",
		"/api/customers/nope/balance",
		"/api/customers/nope/statement",
	} {
		rec := ts.do(t, http.MethodGet, path, nil)
		assert.Equalf(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestListCustomers_SearchAndTotals(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.h.loadScenario(t.Context(), "egg-farm"))

	var all []CustomerSummaryDTO
	ts.mustDo(t, http.MethodGet, "/api/customers", nil, http.StatusOK, &all)
	require.Len(t, all, 3)
	assert.Equal(t, "Chinedu Eze", all[0].Name, "newest first")
	assertDecimal(t, "45000", all[0].CurrentBalance, "chinedu owes")

	var found []CustomerSummaryDTO
	ts.mustDo(t, http.MethodGet, "/api/customers?q=ada", nil, http.StatusOK, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "Ada Okafor", found[0].Name)
	assertDecimal(t, "37000", found[0].TotalSpent, "25000 + 12000")
	assertDecimal(t, "0", found[0].CurrentBalance, "old debt cleared")

	ts.mustDo(t, http.MethodGet, "/api/customers?q=805123", nil, http.StatusOK, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "Bola Adeyemi", found[0].Name, "matched on mobile")
}

// =============================================================================
// BATCHES & SIZES
// =============================================================================

func TestBatches_Lifecycle(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: Two batches
	var first, second BatchDTO
	ts.mustDo(t, http.MethodPost, "/api/batches", map[string]any{
		"name": "March Eggs", "cost_price": "400", "tax_rate": 10, "expenses": "100",
	}, http.StatusCreated, &first)
	ts.mustDo(t, http.MethodPost, "/api/batches", map[string]any{
		"name": "April Eggs", "cost_price": 0, "tax_rate": 0, "expenses": 0,
	}, http.StatusCreated, &second)
	assert.False(t, first.IsBalanced)
	assertDecimal(t, "10", first.TaxRate, "tax rate accepted as a number")

	// WHEN: Listing
	var list []BatchDTO
	ts.mustDo(t, http.MethodGet, "/api/batches", nil, http.StatusOK, &list)

	// THEN: Newest first
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	// Partial update leaves other fields alone
	var updated BatchDTO
	ts.mustDo(t, http.MethodPut, "/api/batches/"+first.ID, map[string]any{"name": "March Eggs (A)"}, http.StatusOK, &updated)
	assert.Equal(t, "March Eggs (A)", updated.Name)
	assertDecimal(t, "400", updated.CostPrice, "cost untouched")

	// Balanced toggle
	ts.mustDo(t, http.MethodPost, "/api/batches/"+first.ID+"/balanced", map[string]any{"is_balanced": true}, http.StatusOK, &updated)
	assert.True(t, updated.IsBalanced)
	rec := ts.do(t, http.MethodPost, "/api/batches/"+first.ID+"/balanced", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "is_balanced is required")

	// Delete
	ts.mustDo(t, http.MethodDelete, "/api/batches/"+first.ID, nil, http.StatusOK, nil)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/batches/"+first.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/batches/"+first.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/batches/"+first.ID, map[string]any{"name": "x"}).Code)
}

func TestCreateBatch_RejectsBadMoney(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"negative cost", map[string]any{"name": "B", "cost_price": "-1"}, "cost_price"},
		{"tax over 100", map[string]any{"name": "B", "tax_rate": 101}, "tax_rate"},
		{"negative expenses", map[string]any{"name": "B", "expenses": -5}, "expenses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(t, http.MethodPost, "/api/batches", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			require.Len(t, resp.Fields, 1)
			assert.Equal(t, tt.wantField, resp.Fields[0].Field)
		})
	}
}

func TestSizes(t *testing.T) {
	ts := newTestServer(t)

	var batch BatchDTO
	ts.mustDo(t, http.MethodPost, "/api/batches", map[string]any{"name": "Eggs"}, http.StatusCreated, &batch)

	var size SizeDTO
	ts.mustDo(t, http.MethodPost, "/api/batches/"+batch.ID+"/sizes", map[string]any{
		"size_name": "Large", "price": "20", "stock_quantity": 5,
	}, http.StatusCreated, &size)
	assert.Equal(t, batch.ID, size.BatchID)

	var updated SizeDTO
	ts.mustDo(t, http.MethodPut, "/api/sizes/"+size.ID, map[string]any{"price": "22.50"}, http.StatusOK, &updated)
	assertDecimal(t, "22.5", updated.Price, "price")
	assert.Equal(t, int64(5), updated.StockQuantity)

	var sizes []SizeDTO
	ts.mustDo(t, http.MethodGet, "/api/batches/"+batch.ID+"/sizes", nil, http.StatusOK, &sizes)
	require.Len(t, sizes, 1)

	assert.Equal(t, http.StatusNotFound,
		ts.do(t, http.MethodPost, "/api/batches/nope/sizes", map[string]any{"size_name": "L"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/batches/nope/sizes", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, http.MethodPut, "/api/sizes/"+size.ID, map[string]any{"stock_quantity": -1}).Code)
}

// =============================================================================
// PURCHASES
// =============================================================================

// debtSettlement loads the debt-settlement scenario and returns the ids of
// its customer, batch and size.
func debtSettlement(t *testing.T, ts *testServer) (customerID, batchID, sizeID string) {
	t.Helper()
	ts.mustDo(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "debt-settlement"}, http.StatusOK, nil)

	var customers []CustomerSummaryDTO
	ts.mustDo(t, http.MethodGet, "/api/customers", nil, http.StatusOK, &customers)
	require.Len(t, customers, 1)
	var batches []BatchDTO
	ts.mustDo(t, http.MethodGet, "/api/batches", nil, http.StatusOK, &batches)
	require.Len(t, batches, 1)
	var sizes []SizeDTO
	ts.mustDo(t, http.MethodGet, "/api/batches/"+batches[0].ID+"/sizes", nil, http.StatusOK, &sizes)
	require.Len(t, sizes, 1)

	return customers[0].ID, batches[0].ID, sizes[0].ID
}

func TestPreviewAllocation_WritesNothing(t *testing.T) {
	ts := newTestServer(t)
	customerID, _, _ := debtSettlement(t, ts)

	// WHEN: Previewing 120 against debts [100, 50, 30] and a new order of 40
	var plan AllocationDTO
	ts.mustDo(t, http.MethodPost, "/api/allocations/preview", map[string]any{
		"customer_id": customerID, "cash_tendered": 120, "new_order_total": 40,
	}, http.StatusOK, &plan)

	// THEN: Oldest cleared, second down to 30, third untouched, new order unpaid
	assertDecimal(t, "180", plan.PreviousBalance, "previous balance")
	require.Len(t, plan.Updates, 2)
	assert.True(t, plan.Updates[0].Cleared)
	assert.NotNil(t, plan.Updates[0].PaidDate)
	assertDecimal(t, "30", plan.Updates[1].Balance, "second purchase")
	assert.Equal(t, 1, plan.ClearedCount)
	assertDecimal(t, "40", plan.NewPurchase.Balance, "new purchase balance")
	assertDecimal(t, "0", plan.NewPurchase.CashPaid, "new purchase cash")
	assert.Nil(t, plan.NewPurchase.PaidDate)

	// AND: Nothing was written
	var bal BalanceDTO
	ts.mustDo(t, http.MethodGet, "/api/customers/"+customerID+"/balance", nil, http.StatusOK, &bal)
	assertDecimal(t, "180", bal.Balance, "balance unchanged")
}

func TestPreviewAllocation_NoCustomer(t *testing.T) {
	ts := newTestServer(t)

	var plan AllocationDTO
	ts.mustDo(t, http.MethodPost, "/api/allocations/preview", map[string]any{
		"cash_tendered": "200", "new_order_total": "150",
	}, http.StatusOK, &plan)

	assert.Empty(t, plan.Updates)
	assertDecimal(t, "150", plan.NewPurchase.CashPaid, "cash paid")
	assertDecimal(t, "0", plan.NewPurchase.Balance, "balance")
	assertDecimal(t, "50", plan.Unapplied, "unapplied")

	rec := ts.do(t, http.MethodPost, "/api/allocations/preview", map[string]any{"cash_tendered": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordPurchase_SettlesOldDebt(t *testing.T) {
	ts := newTestServer(t)
	customerID, batchID, sizeID := debtSettlement(t, ts)

	// WHEN: Buying one tray (40) with 120 cash
	var receipt ReceiptDTO
	ts.mustDo(t, http.MethodPost, "/api/batches/"+batchID+"/purchases", map[string]any{
		"customer_id":   customerID,
		"items":         []map[string]any{{"size_id": sizeID, "quantity": 1}},
		"cash_tendered": "120",
		"actor_id":      "owner",
	}, http.StatusCreated, &receipt)

	// THEN: The receipt describes the settlement
	assert.Equal(t, "unpaid", receipt.Purchase.Status)
	assertDecimal(t, "40", receipt.Purchase.Balance, "new purchase balance")
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "Tray", receipt.Items[0].SizeName)
	assertDecimal(t, "40", receipt.Items[0].LineTotal, "line total")
	assert.Equal(t, 1, receipt.Allocation.ClearedCount)
	require.NotNil(t, receipt.Notification)
	assert.Equal(t, "1 old debt(s) cleared for Tunde Bakare.", receipt.Notification.Message)
	assert.Empty(t, receipt.Shortfalls)

	// AND: Debt is 30 + 30 + 40
	var bal BalanceDTO
	ts.mustDo(t, http.MethodGet, "/api/customers/"+customerID+"/balance", nil, http.StatusOK, &bal)
	assertDecimal(t, "100", bal.Balance, "balance")

	// AND: The notification is addressed to the actor
	var notes struct {
		Notifications []NotificationDTO `json:"notifications"`
	}
	ts.mustDo(t, http.MethodGet, "/api/notifications?user_id=owner", nil, http.StatusOK, &notes)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, "Payment Cleared", notes.Notifications[0].Title)
	ts.mustDo(t, http.MethodGet, "/api/notifications?user_id=someone-else", nil, http.StatusOK, &notes)
	assert.Empty(t, notes.Notifications)

	// AND: Stock went down
	var sizes []SizeDTO
	ts.mustDo(t, http.MethodGet, "/api/batches/"+batchID+"/sizes", nil, http.StatusOK, &sizes)
	assert.Equal(t, int64(49), sizes[0].StockQuantity)
}

func TestRecordPurchase_Rejects(t *testing.T) {
	ts := newTestServer(t)
	customerID, batchID, sizeID := debtSettlement(t, ts)

	var other BatchDTO
	ts.mustDo(t, http.MethodPost, "/api/batches", map[string]any{"name": "Other"}, http.StatusCreated, &other)

	tests := []struct {
		name       string
		batchID    string
		body       map[string]any
		wantStatus int
		wantField  string
	}{
		{
			name:       "no items",
			batchID:    batchID,
			body:       map[string]any{"customer_id": customerID, "items": []any{}},
			wantStatus: http.StatusBadRequest,
			wantField:  "items",
		},
		{
			name:    "zero quantity",
			batchID: batchID,
			body: map[string]any{"customer_id": customerID,
				"items": []map[string]any{{"size_id": sizeID, "quantity": 0}}},
			wantStatus: http.StatusBadRequest,
			wantField:  "items[0].quantity",
		},
		{
			name:    "negative cash",
			batchID: batchID,
			body: map[string]any{"customer_id": customerID, "cash_tendered": "-1",
				"items": []map[string]any{{"size_id": sizeID, "quantity": 1}}},
			wantStatus: http.StatusBadRequest,
			wantField:  "cash_tendered",
		},
		{
			name:    "size from another batch",
			batchID: other.ID,
			body: map[string]any{"customer_id": customerID,
				"items": []map[string]any{{"size_id": sizeID, "quantity": 1}}},
			wantStatus: http.StatusBadRequest,
			wantField:  "items[0].size_id",
		},
		{
			name:    "unknown customer",
			batchID: batchID,
			body: map[string]any{"customer_id": "nope",
				"items": []map[string]any{{"size_id": sizeID, "quantity": 1}}},
			wantStatus: http.StatusNotFound,
		},
		{
			name:    "unknown batch",
			batchID: "nope",
			body: map[string]any{"customer_id": customerID,
				"items": []map[string]any{{"size_id": sizeID, "quantity": 1}}},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/batches/"+tt.batchID+"/purchases", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantField != "" {
				resp := decodeError(t, rec)
				require.NotEmpty(t, resp.Fields)
				assert.Equal(t, tt.wantField, resp.Fields[0].Field)
			}
		})
	}

	// Nothing was written by any rejected request
	var bal BalanceDTO
	ts.mustDo(t, http.MethodGet, "/api/customers/"+customerID+"/balance", nil, http.StatusOK, &bal)
	assertDecimal(t, "180", bal.Balance, "balance unchanged")
}

func TestDeletePurchase(t *testing.T) {
	ts := newTestServer(t)
	customerID, _, _ := debtSettlement(t, ts)

	var st StatementDTO
	ts.mustDo(t, http.MethodGet, "/api/customers/"+customerID+"/statement", nil, http.StatusOK, &st)
	require.Len(t, st.Purchases, 3)
	newest := st.Purchases[0]
	assertDecimal(t, "30", newest.TotalAmount, "newest debt first")

	ts.mustDo(t, http.MethodDelete, "/api/purchases/"+newest.ID, nil, http.StatusOK, nil)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/purchases/"+newest.ID, nil).Code)

	var bal BalanceDTO
	ts.mustDo(t, http.MethodGet, "/api/customers/"+customerID+"/balance", nil, http.StatusOK, &bal)
	assertDecimal(t, "150", bal.Balance, "balance without the deleted purchase")
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReportsAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.h.loadScenario(t.Context(), "closed-batch"))

	// WHEN: Reading the reports page
	var resp ReportsResponse
	ts.mustDo(t, http.MethodGet, "/api/reports/batches", nil, http.StatusOK, &resp)

	// THEN: Newest batch first; January: revenue 50000, tax 5000, profit 13000
	require.Len(t, resp.Batches, 2)
	assert.Equal(t, "February Eggs", resp.Batches[0].Name)
	jan := resp.Batches[1]
	assert.True(t, jan.IsBalanced)
	assertDecimal(t, "50000", jan.Revenue, "revenue")
	assertDecimal(t, "5000", jan.Tax, "tax")
	assertDecimal(t, "13000", jan.Profit, "profit")
	assertDecimal(t, "1300", jan.Tithe, "tithe")
	assertDecimal(t, "26", jan.Margin, "margin")

	// February has no sales: loss of cost + expenses
	assertDecimal(t, "-42500", resp.Batches[0].Profit, "february profit")
	assertDecimal(t, "-29500", resp.Totals.Profit, "total profit")
	assertDecimal(t, "1300", resp.Totals.Tithe, "total tithe")
	assertDecimal(t, "9500", resp.Totals.Expenses, "expenses + tax")

	var one BatchReportDTO
	ts.mustDo(t, http.MethodGet, "/api/reports/batches/"+jan.BatchID, nil, http.StatusOK, &one)
	assert.Equal(t, jan, one)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/reports/batches/nope", nil).Code)

	var dash DashboardDTO
	ts.mustDo(t, http.MethodGet, "/api/dashboard", nil, http.StatusOK, &dash)
	assertDecimal(t, "50000", dash.TotalRevenue, "dashboard revenue")
	assertDecimal(t, "0", dash.TotalBalance, "nothing outstanding")
	assertDecimal(t, "-29500", dash.TotalProfit, "dashboard profit")
	assert.Equal(t, 2, dash.CustomerCount)
	assert.Equal(t, 1, dash.ActiveBatches)

	// Batch page
	var detail BatchDetailDTO
	ts.mustDo(t, http.MethodGet, "/api/batches/"+jan.BatchID, nil, http.StatusOK, &detail)
	assert.Equal(t, "January Eggs", detail.Batch.Name)
	require.Len(t, detail.Sizes, 1)
	assert.Equal(t, int64(0), detail.Sizes[0].StockQuantity, "sold out")
	require.Len(t, detail.Purchases, 2)
	assert.Equal(t, "Ngozi Nwosu", detail.Purchases[0].CurrentCustomerName)
	assert.Equal(t, jan, detail.Report)
}

func TestListNotifications_InvalidLimit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/notifications?limit=ten", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit", decodeError(t, rec).Fields[0].Field)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	validation := generic.NewValidationError("items", "add at least one item")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", validation, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("record: %w", validation), http.StatusBadRequest},
		{"unsupported value", generic.ErrUnsupportedValue, http.StatusBadRequest},
		{"not found", &generic.NotFoundError{Entity: "batches", ID: "b1"}, http.StatusNotFound},
		{"lock busy", fmt.Errorf("%w: settlement:customer:c1", generic.ErrLockNotObtained), http.StatusConflict},
		{"concurrent modification", generic.ErrConcurrentModification, http.StatusConflict},
		{"partial failure", &generic.PartialFailureError{Operation: "record purchase", Cause: validation}, http.StatusInternalServerError},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
