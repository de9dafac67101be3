// Package server assembles the HTTP router and gRPC server for the registration service.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	healthhandler "parkncharge/registration/internal/health/handler"
	"parkncharge/registration/internal/metrics"
	registrationhandler "parkncharge/registration/internal/registration/handler"
	"parkncharge/registration/internal/server/middleware"
)

// RegistrationPrefix is where the registration API is mounted.
const RegistrationPrefix = "/registration/api/v1"

// requestTimeout bounds a registration request end to end: one store call and one SMS.
const requestTimeout = 30 * time.Second

// Deps holds the handlers and cross-cutting dependencies for the HTTP router.
type Deps struct {
	Registration *registrationhandler.Handler
	Health       *healthhandler.Server
	// Verifier authenticates API clients. If nil, registration routes are unauthenticated.
	Verifier middleware.TokenVerifier
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. If nil, /metrics is not served.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// NewRouter builds the HTTP handler:
//   - GET  /healthz, /readyz     handled by internal/health/handler
//   - GET  /metrics              handled by Prometheus
//   - POST /registration/api/v1/... handled by internal/registration/handler (client token required)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Instrument(deps.Metrics))

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Liveness)
		r.Get("/readyz", deps.Health.Readiness)
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if deps.Registration != nil {
		r.Route(RegistrationPrefix, func(api chi.Router) {
			api.Use(chimw.Timeout(requestTimeout))
			api.Use(chimw.AllowContentType("application/json"))
			api.Use(middleware.RequireClient(deps.Verifier, deps.Logger))
			deps.Registration.Routes(api)
		})
	}
	return r
}
