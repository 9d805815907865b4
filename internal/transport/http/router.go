// Package http wires the engine's services onto their routes.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifebank/internal/platform/middleware"
	id "lifebank/pkg/domain"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger    *slog.Logger
	Validator middleware.JWTValidator
	Inventory *InventoryHandler
	Requests  *RequestHandler
	Matches   *MatchHandler
	// Health lists optional dependency checks, keyed by name.
	Health map[string]HealthChecker
}

// NewRouter assembles the full route table.
//
// The confirmation endpoint is deliberately outside the authenticated group:
// the match token is the donor's only credential. Everything else requires a
// verified identity, with staff capabilities enforced per route group.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", healthHandler(deps.Logger, deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/confirm/{token}", deps.Matches.Confirm)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		r.Get("/inventory/summary", deps.Inventory.Summary)

		r.Post("/requests", deps.Requests.Create)
		r.Get("/requests", deps.Requests.List)
		r.Get("/requests/{id}", deps.Requests.Get)
		r.Delete("/requests/{id}", deps.Requests.Delete)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(id.Role.CanManageInventory, deps.Logger))
			r.Post("/inventory", deps.Inventory.Add)
			r.Get("/inventory/{id}", deps.Inventory.Get)
			r.Delete("/inventory/{id}", deps.Inventory.Remove)
			r.Post("/requests/{id}/allocate", deps.Requests.Allocate)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(id.Role.CanTransitionRequests, deps.Logger))
			r.Post("/requests/{id}/status", deps.Requests.SetStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(id.Role.CanCreateMatches, deps.Logger))
			r.Post("/matches", deps.Matches.Create)
		})
	})

	return r
}

func healthHandler(logger *slog.Logger, checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				result[name] = "unhealthy"
				result["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		writeJSON(w, r, logger, status, result)
	}
}
