// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dropDatabas3/federation/internal/observability/logger"
)

// Pinger es cualquier dependencia verificable (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response es el cuerpo de /readyz.
type Response struct {
	Status     string            `json:"status"` // ready | unavailable
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components"`
}

// HealthController maneja /healthz y /readyz.
type HealthController struct {
	checks  map[string]Pinger
	timeout time.Duration
	version string
}

// NewHealthController crea el controller. checks se consulta en paralelo en cada /readyz.
func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks, timeout: 2 * time.Second, version: version}
}

// Healthz es liveness: no toca dependencias.
func (c *HealthController) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	resp := Response{Status: "ready", Version: c.version, Components: make(map[string]string, len(c.checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, p := range c.checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			state := "ok"
			if err := p.Ping(ctx); err != nil {
				state = "error: " + err.Error()
				log.Warn("readiness check failed", logger.String("component", name), logger.Err(err))
			}
			mu.Lock()
			resp.Components[name] = state
			if state != "ok" {
				resp.Status = "unavailable"
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
