/*
auditor.go - Periodic invariant audit

PURPOSE:
  Periodically re-checks the purchase and stock invariants over every
  stored record and keeps a history of the runs. A violation means a write
  went wrong somewhere (a partial failure that could not be undone, a manual
  edit of the database, a bug) and needs a human to look at it.

CHECKS:
  Purchases: cash_paid >= 0, balance >= 0, balance = total_amount - cash_paid,
             paid_date set exactly when balance is zero
  Sizes:     stock_quantity >= 0

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Each run is stored as an audit_runs record, "running" then
    "completed" or "failed"
  - Audits only read trading records; nothing is repaired automatically

CONFIGURATION:
  - Interval: How often to check (default: 1 hour)
  - Enabled: Whether the auditor is active (default: true)

USAGE:
  auditor := NewInvariantAuditor(store, logger)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - trading/types.go: Purchase.CheckInvariants
  - handlers.go: audit endpoints
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

// EntityAuditRuns holds one record per audit run.
const EntityAuditRuns generic.EntityType = "audit_runs"

const (
	AuditRunning   = "running"
	AuditCompleted = "completed"
	AuditFailed    = "failed"

	// maxStoredProblems bounds the problem list kept on a run record.
	maxStoredProblems = 50
)

// AuditRun is one pass over the records.
type AuditRun struct {
	ID          string
	Status      string
	Checked     int64
	Violations  int64
	Problems    []string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

func auditRunFromRecord(r generic.Record) AuditRun {
	run := AuditRun{
		ID:          r.ID,
		Status:      r.Fields.String("status"),
		Checked:     r.Fields.Int("checked"),
		Violations:  r.Fields.Int("violations"),
		Error:       r.Fields.String("error"),
		StartedAt:   r.CreatedAt,
		CompletedAt: r.Fields.Time("completed_at"),
	}
	if p := r.Fields.String("problems"); p != "" {
		run.Problems = strings.Split(p, "\n")
	}
	return run
}

func (run AuditRun) fields() generic.Fields {
	problems := run.Problems
	if len(problems) > maxStoredProblems {
		problems = problems[:maxStoredProblems]
	}
	return generic.Fields{
		"status":       run.Status,
		"checked":      run.Checked,
		"violations":   run.Violations,
		"problems":     strings.Join(problems, "\n"),
		"error":        run.Error,
		"completed_at": run.CompletedAt,
	}
}

func toAuditRunDTO(run AuditRun) AuditRunDTO {
	dto := AuditRunDTO{
		ID:         run.ID,
		Status:     run.Status,
		Checked:    run.Checked,
		Violations: run.Violations,
		Problems:   run.Problems,
		Error:      run.Error,
		StartedAt:  formatTime(run.StartedAt),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTime(*run.CompletedAt)
	}
	return dto
}

// =============================================================================
// AUDITOR
// =============================================================================

// InvariantAuditor checks stored records on a schedule.
type InvariantAuditor struct {
	Store    generic.Store
	Interval time.Duration
	Enabled  bool

	logger *zap.Logger
	now    func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
}

// NewInvariantAuditor creates an auditor with a one hour interval.
func NewInvariantAuditor(store generic.Store, logger *zap.Logger) *InvariantAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvariantAuditor{
		Store:    store,
		Interval: time.Hour,
		Enabled:  true,
		logger:   logger.Named("auditor"),
		now:      time.Now,
	}
}

// Start begins the schedule. Calling Start on a running auditor does nothing.
func (a *InvariantAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		a.logger.Info("disabled, not starting")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.Interval)
	a.stop = make(chan struct{})
	a.wg.Add(1)

	go a.run(a.ticker, a.stop)

	a.logger.Info("started", zap.Duration("interval", a.Interval))
}

// Stop stops the schedule and waits for a run in progress.
func (a *InvariantAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.logger.Info("stopped")
}

func (a *InvariantAuditor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer a.wg.Done()

	a.scheduledRun()

	for {
		select {
		case <-ticker.C:
			a.scheduledRun()
		case <-stop:
			return
		}
	}
}

func (a *InvariantAuditor) scheduledRun() {
	if _, err := a.RunNow(context.Background()); err != nil {
		a.logger.Error("audit run failed", zap.Error(err))
	}
}

// RunNow audits every purchase and size and stores the run. A run that
// finds violations still completes; the error is for store failures.
func (a *InvariantAuditor) RunNow(ctx context.Context) (AuditRun, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	run := AuditRun{Status: AuditRunning}
	rec, err := a.Store.Create(ctx, EntityAuditRuns, generic.Fields{"status": run.Status})
	if err != nil {
		return AuditRun{}, fmt.Errorf("failed to save run record: %w", err)
	}
	run.ID = rec.ID
	run.StartedAt = rec.CreatedAt

	checkErr := a.check(ctx, &run)

	completed := a.now().UTC()
	run.CompletedAt = &completed
	run.Status = AuditCompleted
	if checkErr != nil {
		run.Status = AuditFailed
		run.Error = checkErr.Error()
	}

	if err := a.Store.Update(ctx, EntityAuditRuns, run.ID, run.fields()); err != nil {
		return run, fmt.Errorf("failed to update run record: %w", err)
	}
	if checkErr != nil {
		return run, checkErr
	}

	log := a.logger.With(
		zap.String("run_id", run.ID),
		zap.Int64("checked", run.Checked),
		zap.Int64("violations", run.Violations),
	)
	if run.Violations > 0 {
		log.Warn("invariant violations found", zap.Strings("problems", run.Problems))
	} else {
		log.Info("audit completed")
	}
	return run, nil
}

func (a *InvariantAuditor) check(ctx context.Context, run *AuditRun) error {
	repo := trading.NewRepository(a.Store)

	purchases, err := repo.ListPurchases(ctx, generic.Query{})
	if err != nil {
		return err
	}
	for _, p := range purchases {
		run.Checked++
		for _, problem := range p.CheckInvariants() {
			run.Violations++
			run.Problems = append(run.Problems, fmt.Sprintf("purchase %s: %s", p.ID, problem))
		}
	}

	sizes, err := a.Store.List(ctx, trading.EntitySizes, generic.Where(generic.Lt(trading.FieldStock, 0)))
	if err != nil {
		return fmt.Errorf("list sizes: %w", err)
	}
	total, err := a.Store.Count(ctx, trading.EntitySizes, generic.Query{})
	if err != nil {
		return fmt.Errorf("count sizes: %w", err)
	}
	run.Checked += int64(total)
	for _, rec := range sizes {
		s := trading.SizeFromRecord(rec)
		run.Violations++
		run.Problems = append(run.Problems, fmt.Sprintf("size %s: stock_quantity is %d", s.ID, s.StockQuantity))
	}
	return nil
}

// ListRuns returns runs newest first. limit <= 0 means all.
func (a *InvariantAuditor) ListRuns(ctx context.Context, limit int) ([]AuditRun, error) {
	recs, err := a.Store.List(ctx, EntityAuditRuns, generic.Query{
		OrderBy: []generic.Order{generic.Desc(generic.FieldCreatedAt)},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	out := make([]AuditRun, len(recs))
	for i, r := range recs {
		out[i] = auditRunFromRecord(r)
	}
	return out, nil
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

// ListAuditRuns returns audit run history.
// GET /api/audit/runs?limit=
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20)
	if err != nil {
		h.fail(w, r, "Invalid limit", err)
		return
	}

	auditor := h.auditor
	if auditor == nil {
		auditor = NewInvariantAuditor(h.Store, h.logger)
	}
	runs, err := auditor.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "Failed to get audit runs", err)
		return
	}

	dtos := make([]AuditRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAuditRunDTO(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// TriggerAudit runs an audit now.
// POST /api/audit/run
func (h *Handler) TriggerAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "Auditor is not configured", nil)
		return
	}
	run, err := h.auditor.RunNow(r.Context())
	if err != nil {
		h.fail(w, r, "Audit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditRunDTO(run))
}
