// Package router registra las rutas HTTP sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	fedhttp "github.com/dropDatabas3/federation/internal/http"
	"github.com/dropDatabas3/federation/internal/http/controllers/health"
	"github.com/dropDatabas3/federation/internal/http/controllers/social"
	httperrors "github.com/dropDatabas3/federation/internal/http/errors"
	mw "github.com/dropDatabas3/federation/internal/http/middlewares"
	"github.com/dropDatabas3/federation/internal/rate"
)

// Deps contiene los controllers a montar.
type Deps struct {
	Callback *social.CallbackController
	Health   *health.HealthController
	// Metrics es el handler de /metrics (opcional).
	Metrics http.Handler
	// RateLimiter limita los callbacks por IP y ruta (opcional).
	RateLimiter rate.Limiter
	// TrustProxy toma la IP de X-Forwarded-For (sólo detrás de un proxy propio).
	TrustProxy bool
}

// New arma el router raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		fedhttp.WithMetrics,
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	if d.Callback != nil {
		key := mw.IPPathRateKey
		if d.TrustProxy {
			key = mw.ProxiedIPPathRateKey
		}
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore(), mw.WithRateLimit(d.RateLimiter, key))
			r.Get("/auth/{provider}/callback", d.Callback.Callback)
			// alias legacy: /github_auth
			r.Get("/{provider}_auth", d.Callback.Callback)
		})
	}
	return r
}
