package httpx

import (
	"encoding/json"
	"net/http"

	"docpay/internal/config"
	"docpay/internal/core/orchestrator"
	"docpay/internal/http/handlers"
	middlewarex "docpay/internal/http/middleware"
	"docpay/internal/services/audit"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDependencies holds everything the HTTP surface needs.
type RouterDependencies struct {
	Config       config.Cfg
	Orchestrator *orchestrator.Orchestrator
	AuditService *audit.Service
}

// NewRouter creates the HTTP router for the checkout surface.
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	// Health check (public)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"maxWaitSeconds": int(deps.Orchestrator.MaxWait().Seconds()),
		})
	})

	// Checkout API consumed by the document UI
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", handlers.StartCheckout(deps.Orchestrator))
		r.Get("/checkout/{reference}", handlers.GetCheckout(deps.Orchestrator))
		r.Post("/checkout/{reference}/abandon", handlers.AbandonCheckout(deps.Orchestrator))
	})

	// Provider callbacks (public, validated by payload shape)
	r.Post("/hooks/daraja", handlers.DarajaCallback(deps.Orchestrator))

	// Audit/export (admin-token protected)
	if deps.AuditService != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarex.AdminAuth(deps.Config))
			r.Get("/checkouts", handlers.ListCheckouts(deps.AuditService))
		})
	}

	return r
}
