// Package metrics expone las métricas Prometheus del exchange federado.
// Vive aparte de internal/http para que services y cmd lo usen sin ciclos.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/federation/internal/services/social"
)

// Exchange implementa social.Observer.
type Exchange struct {
	outcomes      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	userUpdates   *prometheus.CounterVec
}

var _ social.Observer = (*Exchange)(nil)

// NewExchange registra los collectors en reg (default si nil). Si ya estaban
// registrados reutiliza los existentes.
func NewExchange(reg prometheus.Registerer) (*Exchange, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e := &Exchange{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "federation_exchange_total",
			Help: "Exchanges federados terminados, por provider y resultado",
		}, []string{"provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "federation_exchange_duration_seconds",
			Help:    "Duración total del exchange",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "federation_exchange_stage_duration_seconds",
			Help:    "Duración de cada etapa (token, perfil, reconciliación)",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "stage", "result"}),
		userUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "federation_local_user_updates_total",
			Help: "Campos del usuario local actualizados en logins subsiguientes",
		}, []string{"field"}),
	}

	var err error
	if e.outcomes, err = register(reg, e.outcomes); err != nil {
		return nil, err
	}
	if e.duration, err = register(reg, e.duration); err != nil {
		return nil, err
	}
	if e.stageDuration, err = register(reg, e.stageDuration); err != nil {
		return nil, err
	}
	if e.userUpdates, err = register(reg, e.userUpdates); err != nil {
		return nil, err
	}
	return e, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (e *Exchange) ObserveStage(provider string, stage social.State, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.stageDuration.WithLabelValues(provider, stage.String(), result).Observe(d.Seconds())
}

func (e *Exchange) ObserveOutcome(provider, outcome string, d time.Duration) {
	e.outcomes.WithLabelValues(provider, outcome).Inc()
	e.duration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// UserUpdated cuenta los campos cambiados (social.Deps.OnUserUpdate).
func (e *Exchange) UserUpdated(fields []string) {
	for _, f := range fields {
		e.userUpdates.WithLabelValues(f).Inc()
	}
}
