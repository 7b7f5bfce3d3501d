// Package social implementa el exchange de identidad federada: canje del code,
// normalización del perfil, reconciliación con el usuario local y gating por
// cuenta activa.
package social

import (
	"time"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// Deps contiene las dependencias para crear los services social.
type Deps struct {
	Users               repository.UserRepository
	Apps                repository.AppRepository
	Providers           ProviderLookup
	RootApp             string                            // tenant por defecto cuando el grant no trae appid
	FallbackCredentials map[string]repository.Credentials // claves globales por prefix ("gh")
	Observer            Observer                          // opcional
	HashPassword        PasswordHasher                    // opcional (tests usan uno barato)
	OnUserUpdate        func(fields []string)             // opcional
	Now                 func() time.Time
}

// Services agrupa los services del dominio social.
type Services struct {
	Exchange   ExchangeService
	Reconciler Reconciler
}

// NewServices crea el agregador de services social.
func NewServices(d Deps) Services {
	rec := NewReconciler(ReconcileDeps{
		Users:        d.Users,
		HashPassword: d.HashPassword,
		OnUpdate:     d.OnUserUpdate,
	})
	return Services{
		Reconciler: rec,
		Exchange: NewExchangeService(ExchangeDeps{
			Providers:           d.Providers,
			Apps:                d.Apps,
			Reconciler:          rec,
			RootApp:             d.RootApp,
			FallbackCredentials: d.FallbackCredentials,
			Observer:            d.Observer,
			Now:                 d.Now,
		}),
	}
}
