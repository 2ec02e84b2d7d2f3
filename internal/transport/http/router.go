// Package httptransport assembles the HTTP surface: middleware chain,
// public read routes, and authenticated mutation routes under /v1.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	capabilityhandler "covenant/internal/capability/handler"
	compliancehandler "covenant/internal/compliance/handler"
	governancehandler "covenant/internal/governance/handler"
	"covenant/internal/platform/middleware"
	transferhandler "covenant/internal/transfer/handler"
)

// Handlers are the per-module HTTP handlers the router mounts.
type Handlers struct {
	Transfer   *transferhandler.Handler
	Compliance *compliancehandler.Handler
	Governance *governancehandler.Handler
	Capability *capabilityhandler.Handler
}

// NewRouter wires all endpoints. Reads and pre-flight evaluation are
// public; every mutation requires a bearer token naming the caller's
// account.
func NewRouter(h Handlers, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(public chi.Router) {
			h.Transfer.RegisterPublic(public)
			h.Compliance.RegisterPublic(public)
			h.Governance.RegisterPublic(public)
			h.Capability.RegisterPublic(public)
		})

		v1.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth(validator, logger))
			h.Transfer.RegisterProtected(protected)
			h.Compliance.RegisterProtected(protected)
			h.Governance.RegisterProtected(protected)
			h.Capability.RegisterProtected(protected)
		})
	})

	return r
}
