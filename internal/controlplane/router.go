package controlplane

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/internal/serverdirector"
	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/MultiDragon/libpuns/pkg/metrics"
)

// NewRouter builds the control plane's chi router. store may be nil
// (e.g. the dummy in-memory database driver), in which case account
// management endpoints respond 503 rather than panicking.
//
// Routes:
//   - GET  /health         - liveness probe, unauthenticated
//   - GET  /health/ready   - readiness probe, unauthenticated
//   - GET  /metrics        - Prometheus scrape, unauthenticated
//   - POST /api/v1/auth/login          - admin login, unauthenticated
//   - GET  /api/v1/zones               - zone occupancy (authenticated)
//   - GET  /api/v1/accounts/connected  - connected account ids (authenticated)
//   - POST /api/v1/accounts            - create account (authenticated)
//   - GET  /api/v1/accounts            - list accounts (authenticated)
//   - POST /api/v1/connections/{oid}/kick - eject a connection (authenticated)
func NewRouter(dir *serverdirector.Director, store *database.Store, admin config.AdminConfig, jwtSvc *JWTService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := &healthHandler{dir: dir}
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	if reg := metrics.GetRegistry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	auth := &authHandler{admin: admin, jwtSvc: jwtSvc}
	runtime := &runtimeHandler{dir: dir}
	accounts := &accountHandler{store: store}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth(jwtSvc))

			r.Get("/zones", runtime.Zones)
			r.Get("/accounts/connected", runtime.ConnectedAccounts)
			r.Post("/connections/{oid}/kick", runtime.Kick)

			r.Route("/accounts", func(r chi.Router) {
				r.Post("/", accounts.Create)
				r.Get("/", accounts.List)
			})
		})
	})

	return r
}
