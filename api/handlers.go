/*
handlers.go - HTTP API handlers for the batch balance engine

PURPOSE:
  Exposes purchase settlement, debt and reports via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the trading and
  reports packages.

ENDPOINTS:
  Customers:
    GET    /api/customers                  List customers with totals (?q= filters)
    POST   /api/customers                  Create customer
    GET    /api/customers/{id}             Get customer
    GET    /api/customers/{id}/balance     Outstanding debt
    GET    /api/customers/{id}/statement   Statement with per-size summary

  Batches:
    GET    /api/batches                    List batches, newest first
    POST   /api/batches                    Create batch
    GET    /api/batches/{id}               Batch detail with report and purchases
    PUT    /api/batches/{id}               Partial update
    DELETE /api/batches/{id}               Delete (sizes and purchases are kept)
    POST   /api/batches/{id}/balanced      Set the balanced flag
    GET    /api/batches/{id}/sizes         List sizes
    POST   /api/batches/{id}/sizes         Add size
    PUT    /api/sizes/{id}                 Partial size update

  Purchases:
    POST   /api/batches/{id}/purchases     Record purchase and settle old debt
    POST   /api/allocations/preview        Plan a payment, write nothing
    DELETE /api/purchases/{id}             Admin delete

  Reports:
    GET    /api/reports/batches            Every batch report plus totals
    GET    /api/reports/batches/{id}       One batch report
    GET    /api/dashboard                  Dashboard figures

  Other:
    GET    /api/notifications              Newest first (?user_id=, ?limit=)
    GET    /api/audit/runs                 Invariant audit history
    POST   /api/audit/run                  Run an audit now

ARCHITECTURE:
  Handler holds all dependencies:
  - Store: record store shared by every component
  - Recorder: the purchase write path
  - Reports: read-only views

ERROR HANDLING:
  Errors are returned as JSON (ErrorResponse) with a status derived from
  the error chain:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Settlement lock busy, concurrent modification
  - 500: Partial failures and everything else

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/reports"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

const (
	defaultPhoneRegion       = "NG"
	defaultNotificationLimit = 50
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store generic.Store

	repo     *trading.Repository
	balances *trading.BalanceCalculator
	recorder *trading.Recorder
	reports  *reports.Service
	auditor  *InvariantAuditor

	logger      *zap.Logger
	validate    *validator.Validate
	phoneRegion string
	recorderOpt []trading.RecorderOption

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

type HandlerOption func(*Handler)

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithLocker sets the settlement locker used by the recorder.
func WithLocker(l trading.Locker) HandlerOption {
	return func(h *Handler) { h.recorderOpt = append(h.recorderOpt, trading.WithLocker(l)) }
}

// WithPhoneRegion sets the region used to read local mobile numbers.
func WithPhoneRegion(region string) HandlerOption {
	return func(h *Handler) {
		if region != "" {
			h.phoneRegion = strings.ToUpper(region)
		}
	}
}

// WithAuditor exposes the auditor's run history and manual trigger.
func WithAuditor(a *InvariantAuditor) HandlerOption {
	return func(h *Handler) { h.auditor = a }
}

// NewHandler creates a new handler over the given store.
func NewHandler(store generic.Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		Store:       store,
		logger:      zap.NewNop(),
		validate:    newValidator(),
		phoneRegion: defaultPhoneRegion,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("api")
	h.repo = trading.NewRepository(store)
	h.balances = trading.NewBalanceCalculator(store)
	h.recorder = trading.NewRecorder(store, append(h.recorderOpt, trading.WithLogger(h.logger))...)
	h.reports = reports.NewService(store)
	return h
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns every customer with total spent and current balance.
// GET /api/customers?q=
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.CustomerSummaries(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list customers", err)
		return
	}

	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	dtos := make([]CustomerSummaryDTO, 0, len(rows))
	for _, row := range rows {
		c := row.Customer
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(c.Mobile, search) {
			continue
		}
		dtos = append(dtos, CustomerSummaryDTO{
			CustomerDTO:    toCustomerDTO(c),
			TotalSpent:     row.TotalSpent,
			CurrentBalance: row.CurrentBalance,
		})
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a new customer.
// POST /api/customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid customer", err)
		return
	}

	mobile, err := normalizeMobile(req.Mobile, h.phoneRegion)
	if err != nil {
		h.fail(w, r, "Invalid customer", err)
		return
	}

	c := trading.Customer{
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.TrimSpace(req.Email),
		Mobile: mobile,
	}
	rec, err := h.Store.Create(r.Context(), trading.EntityCustomers, c.Fields())
	if err != nil {
		h.fail(w, r, "Failed to create customer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerDTO(trading.CustomerFromRecord(rec)))
}

// GetCustomer returns a single customer.
// GET /api/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// GetCustomerBalance returns the customer's outstanding debt.
// GET /api/customers/{id}/balance
func (h *Handler) GetCustomerBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := h.repo.GetCustomer(ctx, id); err != nil {
		h.fail(w, r, "Failed to get customer", err)
		return
	}
	balance, err := h.balances.OutstandingBalance(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{CustomerID: id, Balance: balance})
}

// GetCustomerStatement returns the customer's statement.
// GET /api/customers/{id}/statement
func (h *Handler) GetCustomerStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.reports.CustomerStatement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to build statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// ListBatches returns every batch, newest first.
// GET /api/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.repo.ListBatches(r.Context(), generic.Query{}.Ordered(generic.Desc(generic.FieldCreatedAt)))
	if err != nil {
		h.fail(w, r, "Failed to list batches", err)
		return
	}

	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBatch creates a new, unbalanced batch.
// POST /api/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid batch", err)
		return
	}

	b := trading.Batch{
		Name:      strings.TrimSpace(req.Name),
		CostPrice: req.CostPrice,
		TaxRate:   req.TaxRate,
		Expenses:  req.Expenses,
	}
	rec, err := h.Store.Create(r.Context(), trading.EntityBatches, b.Fields())
	if err != nil {
		h.fail(w, r, "Failed to create batch", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBatchDTO(trading.BatchFromRecord(rec)))
}

// GetBatch returns the batch page: sizes, report and purchases.
// GET /api/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.BatchDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDetailDTO(d))
}

// UpdateBatch applies a partial update.
// PUT /api/batches/{id}
func (h *Handler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req UpdateBatchRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid batch update", err)
		return
	}
	h.updateBatch(w, r, req.fields())
}

// SetBatchBalanced sets or clears the balanced flag.
// POST /api/batches/{id}/balanced
func (h *Handler) SetBatchBalanced(w http.ResponseWriter, r *http.Request) {
	var req SetBalancedRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	h.updateBatch(w, r, generic.Fields{trading.FieldIsBalanced: *req.IsBalanced})
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request, fields generic.Fields) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if len(fields) > 0 {
		if err := h.Store.Update(ctx, trading.EntityBatches, id, fields); err != nil {
			h.fail(w, r, "Failed to update batch", err)
			return
		}
	}
	b, err := h.repo.GetBatch(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}

// DeleteBatch deletes a batch record only. Its sizes and purchases remain;
// statements label those purchases "Deleted Batch".
// DELETE /api/batches/{id}
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), trading.EntityBatches, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete batch", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// SIZE HANDLERS
// =============================================================================

// ListSizes returns the sizes of a batch.
// GET /api/batches/{id}/sizes
func (h *Handler) ListSizes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	if _, err := h.repo.GetBatch(ctx, batchID); err != nil {
		h.fail(w, r, "Failed to get batch", err)
		return
	}
	sizes, err := h.repo.ListSizes(ctx, batchID)
	if err != nil {
		h.fail(w, r, "Failed to list sizes", err)
		return
	}
	writeJSON(w, http.StatusOK, toSizeDTOs(sizes))
}

// CreateSize adds a size to a batch.
// POST /api/batches/{id}/sizes
func (h *Handler) CreateSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	var req CreateSizeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid size", err)
		return
	}
	if _, err := h.repo.GetBatch(ctx, batchID); err != nil {
		h.fail(w, r, "Failed to get batch", err)
		return
	}

	s := trading.Size{
		BatchID:       batchID,
		SizeName:      strings.TrimSpace(req.SizeName),
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	}
	rec, err := h.Store.Create(ctx, trading.EntitySizes, s.Fields())
	if err != nil {
		h.fail(w, r, "Failed to create size", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSizeDTO(trading.SizeFromRecord(rec)))
}

// UpdateSize applies a partial update.
// PUT /api/sizes/{id}
func (h *Handler) UpdateSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateSizeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid size update", err)
		return
	}
	if fields := req.fields(); len(fields) > 0 {
		if err := h.Store.Update(ctx, trading.EntitySizes, id, fields); err != nil {
			h.fail(w, r, "Failed to update size", err)
			return
		}
	}
	s, err := h.repo.GetSize(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get size", err)
		return
	}
	writeJSON(w, http.StatusOK, toSizeDTO(s))
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// RecordPurchase records a sale and settles the customer's old debt with
// the tendered cash.
// POST /api/batches/{id}/purchases
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordPurchaseRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid purchase", err)
		return
	}

	receipt, err := h.recorder.RecordPurchase(r.Context(), req.toDomain(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to record purchase", err)
		return
	}

	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

// PreviewAllocation plans a payment against the customer's current debt
// without writing anything.
// POST /api/allocations/preview
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationPreviewRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.fail(w, r, "Invalid allocation request", err)
		return
	}

	alloc, err := h.recorder.Allocator().AllocatePayment(r.Context(), req.CustomerID, req.CashTendered, req.NewOrderTotal)
	if err != nil {
		h.fail(w, r, "Failed to plan allocation", err)
		return
	}

	writeJSON(w, http.StatusOK, toAllocationDTO(alloc))
}

// DeletePurchase removes a purchase record. Its items stay and no other
// purchase is changed.
// DELETE /api/purchases/{id}
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.Delete(r.Context(), trading.EntityPurchases, id); err != nil {
		h.fail(w, r, "Failed to delete purchase", err)
		return
	}
	h.logger.Info("purchase deleted", zap.String("purchase_id", id))
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ListBatchReports returns every batch report, newest batch first, with totals.
// GET /api/reports/batches
func (h *Handler) ListBatchReports(w http.ResponseWriter, r *http.Request) {
	rs, err := h.reports.BatchReports(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build reports", err)
		return
	}

	dtos := make([]BatchReportDTO, len(rs))
	for i, rep := range rs {
		dtos[i] = toBatchReportDTO(rep)
	}
	t := reports.SumReports(rs)

	writeJSON(w, http.StatusOK, ReportsResponse{
		Batches: dtos,
		Totals: TotalsDTO{
			Revenue:  t.Revenue,
			Profit:   t.Profit,
			Tithe:    t.Tithe,
			Expenses: t.Expenses,
		},
	})
}

// GetBatchReport returns one batch report.
// GET /api/reports/batches/{id}
func (h *Handler) GetBatchReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.BatchReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchReportDTO(rep))
}

// GetDashboard returns the dashboard figures.
// GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		TotalRevenue:  d.TotalRevenue,
		TotalProfit:   d.TotalProfit,
		TotalBalance:  d.TotalBalance,
		CustomerCount: d.CustomerCount,
		ActiveBatches: d.ActiveBatches,
	})
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns notifications newest first.
// GET /api/notifications?user_id=&limit=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultNotificationLimit)
	if err != nil {
		h.fail(w, r, "Invalid limit", err)
		return
	}

	ns, err := h.repo.ListNotifications(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		h.fail(w, r, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(ns))
	for i, n := range ns {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Fields = fieldErrors(err)
	}
	writeJSON(w, status, resp)
}

// fail writes err with the status its chain maps to. Server-side failures
// are logged; client errors are not.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, message, err)
}

// statusFor maps an error chain to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrPartialFailure):
		return http.StatusInternalServerError
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsRetryable(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryLimit reads ?limit=, falling back to def. Zero or less means no limit.
func queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, generic.NewValidationError("limit", "must be an integer")
	}
	return max(n, 0), nil
}
