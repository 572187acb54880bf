package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

// failingPurchases fails every purchase listing.
type failingPurchases struct {
	generic.Store
}

func (f failingPurchases) List(ctx context.Context, entity generic.EntityType, q generic.Query) ([]generic.Record, error) {
	if entity == trading.EntityPurchases {
		return nil, errors.New("connection reset")
	}
	return f.Store.List(ctx, entity, q)
}

func TestInvariantAuditor_CleanRun(t *testing.T) {
	h := NewHandler(newTestStore())
	require.NoError(t, h.loadScenario(t.Context(), "closed-batch"))
	auditor := NewInvariantAuditor(h.Store, nil)

	run, err := auditor.RunNow(t.Context())

	require.NoError(t, err)
	assert.Equal(t, AuditCompleted, run.Status)
	// 2 purchases + 2 sizes
	assert.Equal(t, int64(4), run.Checked)
	assert.Zero(t, run.Violations)
	require.NotNil(t, run.CompletedAt)

	runs, err := auditor.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, AuditCompleted, runs[0].Status)
	assert.Empty(t, runs[0].Problems)
}

func TestInvariantAuditor_FindsViolations(t *testing.T) {
	h := NewHandler(newTestStore())
	ctx := t.Context()
	require.NoError(t, h.loadScenario(ctx, "debt-settlement"))

	// GIVEN: A purchase whose balance no longer matches its money fields
	purchases, err := h.repo.ListPurchases(ctx, generic.Query{})
	require.NoError(t, err)
	broken := purchases[0]
	require.NoError(t, h.Store.Update(ctx, trading.EntityPurchases, broken.ID,
		generic.Fields{trading.FieldBalance: broken.Balance.Add(dec("5"))}))

	// AND: A size with negative stock
	sizes, err := h.Store.List(ctx, trading.EntitySizes, generic.Query{})
	require.NoError(t, err)
	require.Len(t, sizes, 1)
	require.NoError(t, h.Store.Update(ctx, trading.EntitySizes, sizes[0].ID,
		generic.Fields{trading.FieldStock: -3}))

	// WHEN: Auditing
	auditor := NewInvariantAuditor(h.Store, nil)
	run, err := auditor.RunNow(ctx)

	// THEN: Both are reported and the run still completes
	require.NoError(t, err)
	assert.Equal(t, AuditCompleted, run.Status)
	assert.Equal(t, int64(2), run.Violations)
	require.Len(t, run.Problems, 2)
	assert.Contains(t, run.Problems[0], "purchase "+broken.ID)
	assert.Equal(t, "size "+sizes[0].ID+": stock_quantity is -3", run.Problems[1])

	stored, err := auditor.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, run.Problems, stored[0].Problems)
}

func TestInvariantAuditor_StoreFailure(t *testing.T) {
	auditor := NewInvariantAuditor(failingPurchases{newTestStore()}, nil)

	run, err := auditor.RunNow(t.Context())

	require.Error(t, err)
	assert.Equal(t, AuditFailed, run.Status)
	assert.Contains(t, run.Error, "connection reset")

	runs, err := auditor.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, AuditFailed, runs[0].Status)
}

func TestInvariantAuditor_ListRunsNewestFirst(t *testing.T) {
	auditor := NewInvariantAuditor(newTestStore(), nil)

	first, err := auditor.RunNow(t.Context())
	require.NoError(t, err)
	second, err := auditor.RunNow(t.Context())
	require.NoError(t, err)

	runs, err := auditor.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	runs, err = auditor.ListRuns(t.Context(), 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestInvariantAuditor_StartStop(t *testing.T) {
	auditor := NewInvariantAuditor(newTestStore(), nil)
	auditor.Interval = 10 * time.Millisecond

	auditor.Start()
	auditor.Start() // no second goroutine

	assert.Eventually(t, func() bool {
		runs, err := auditor.ListRuns(context.Background(), 0)
		return err == nil && len(runs) >= 2
	}, time.Second, 5*time.Millisecond)

	auditor.Stop()
	auditor.Stop()

	runs, err := auditor.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	stopped := len(runs)
	time.Sleep(30 * time.Millisecond)
	runs, err = auditor.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, stopped, "no runs after Stop")
}

func TestInvariantAuditor_Disabled(t *testing.T) {
	auditor := NewInvariantAuditor(newTestStore(), nil)
	auditor.Enabled = false

	auditor.Start()
	defer auditor.Stop()

	assert.Nil(t, auditor.ticker)
	runs, err := auditor.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAuditEndpoints(t *testing.T) {
	t.Run("without auditor", func(t *testing.T) {
		ts := newTestServer(t)

		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodPost, "/api/audit/run", nil).Code)

		var resp struct {
			Runs []AuditRunDTO `json:"runs"`
		}
		ts.mustDo(t, http.MethodGet, "/api/audit/runs", nil, http.StatusOK, &resp)
		assert.Empty(t, resp.Runs)
	})

	t.Run("with auditor", func(t *testing.T) {
		ts := newTestServer(t)
		ts.h.auditor = NewInvariantAuditor(ts.h.Store, nil)

		var run AuditRunDTO
		ts.mustDo(t, http.MethodPost, "/api/audit/run", nil, http.StatusOK, &run)
		assert.Equal(t, AuditCompleted, run.Status)
		assert.NotEmpty(t, run.CompletedAt)

		var resp struct {
			Runs []AuditRunDTO `json:"runs"`
		}
		ts.mustDo(t, http.MethodGet, "/api/audit/runs?limit=5", nil, http.StatusOK, &resp)
		require.Len(t, resp.Runs, 1)
		assert.Equal(t, run.ID, resp.Runs[0].ID)
	})
}
