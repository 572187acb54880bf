/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/customers/*      Customers, balances, statements
  /api/batches/*        Batches, sizes, recording purchases
  /api/sizes/*          Size updates
  /api/purchases/*      Admin purchase deletion
  /api/allocations/*    Payment plan preview
  /api/reports/*        Profitability
  /api/dashboard        Dashboard
  /api/notifications    In-app notifications
  /api/scenarios/*      Demo scenarios
  /api/audit/*          Invariant audits
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	AllowedOrigins []string
}

// DefaultRouterConfig allows the local frontend dev servers.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if len(cfg.AllowedOrigins) == 0 {
		cfg = DefaultRouterConfig()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/balance", h.GetCustomerBalance)
			r.Get("/{id}/statement", h.GetCustomerStatement)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.CreateBatch)
			r.Get("/{id}", h.GetBatch)
			r.Put("/{id}", h.UpdateBatch)
			r.Delete("/{id}", h.DeleteBatch)
			r.Post("/{id}/balanced", h.SetBatchBalanced)
			r.Get("/{id}/sizes", h.ListSizes)
			r.Post("/{id}/sizes", h.CreateSize)
			r.Post("/{id}/purchases", h.RecordPurchase)
		})

		r.Put("/sizes/{id}", h.UpdateSize)
		r.Delete("/purchases/{id}", h.DeletePurchase)
		r.Post("/allocations/preview", h.PreviewAllocation)

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/batches", h.ListBatchReports)
			r.Get("/batches/{id}", h.GetBatchReport)
		})
		r.Get("/dashboard", h.GetDashboard)

		r.Get("/notifications", h.ListNotifications)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		// Audit routes
		r.Route("/audit", func(r chi.Router) {
			r.Get("/runs", h.ListAuditRuns)
			r.Post("/run", h.TriggerAudit)
		})
	})

	return r
}

// requestLogger logs one line per request with its status and duration.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
