// Package app arma el proceso completo a partir de la configuración:
// stores, cache, control plane, providers, services, métricas y router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/federation/internal/cache"
	"github.com/dropDatabas3/federation/internal/config"
	"github.com/dropDatabas3/federation/internal/controlplane"
	cpfs "github.com/dropDatabas3/federation/internal/controlplane/fs"
	"github.com/dropDatabas3/federation/internal/domain/repository"
	fedhttp "github.com/dropDatabas3/federation/internal/http"
	"github.com/dropDatabas3/federation/internal/http/controllers/health"
	socialctrl "github.com/dropDatabas3/federation/internal/http/controllers/social"
	"github.com/dropDatabas3/federation/internal/http/router"
	"github.com/dropDatabas3/federation/internal/jwt"
	"github.com/dropDatabas3/federation/internal/metrics"
	"github.com/dropDatabas3/federation/internal/observability/logger"
	"github.com/dropDatabas3/federation/internal/providers"
	"github.com/dropDatabas3/federation/internal/providers/github"
	"github.com/dropDatabas3/federation/internal/rate"
	"github.com/dropDatabas3/federation/internal/security/secretbox"
	socialsvc "github.com/dropDatabas3/federation/internal/services/social"
	"github.com/dropDatabas3/federation/internal/store"
	"github.com/dropDatabas3/federation/internal/store/pg"
)

// Deps son dependencias opcionales; los tests inyectan las suyas.
type Deps struct {
	// Registry/Gatherer de prometheus; nil => default del proceso.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
	// Box para secrets del control plane; nil => SECRETBOX_MASTER_KEY si está.
	Box     *secretbox.Box
	Version string
}

// App es el proceso cableado.
type App struct {
	Handler  http.Handler
	Stores   *store.Stores
	Cache    cache.Client
	Exchange socialsvc.ExchangeService
	Sessions *jwt.SessionIssuer
	closers  []func()
}

// Close libera pool y cache, en orden inverso de apertura.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// New cablea el App. Si falla a mitad libera lo ya abierto.
func New(ctx context.Context, cfg *config.Config, deps Deps) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"))
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. Store de usuarios
	a.Stores, err = store.Open(ctx, store.Config{
		Driver:  cfg.Storage.Driver,
		DSN:     cfg.Storage.DSN,
		Migrate: cfg.Storage.Migrate,
		Pool: pg.PoolConfig{
			MaxConns:        int32(cfg.Storage.Postgres.MaxOpenConns),
			MinConns:        int32(cfg.Storage.Postgres.MaxIdleConns),
			MaxConnLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, 0),
		},
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Stores.Close)

	// 2. Cache compartido
	appTTL := config.Dur(cfg.Cache.AppTTL, time.Minute)
	a.Cache, err = cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: appTTL,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.Cache.Close() })

	// 3. Control plane: YAML en disco, cacheado, con el root app como fallback
	box := deps.Box
	if box == nil {
		box, err = secretbox.Default()
		switch {
		case err == nil:
		case errors.Is(err, secretbox.ErrNoKey):
			log.Warn("SECRETBOX_MASTER_KEY not set: encrypted client secrets cannot be read")
			box, err = nil, nil
		default:
			return nil, fmt.Errorf("app: secretbox: %w", err)
		}
	}
	var (
		sealer   cpfs.Sealer
		cacheBox controlplane.SecretSealer
	)
	if box != nil {
		sealer, cacheBox = box, box
	} else if _, ok := cache.RedisClient(a.Cache); ok {
		log.Warn("redis cache without secretbox key: app secrets are cached in clear")
	}
	apps := controlplane.Chain{
		controlplane.NewCached(cpfs.New(cfg.ControlPlane.FSRoot, sealer), a.Cache, controlplane.CachedOptions{TTL: appTTL, Box: cacheBox}),
		controlplane.Static{cfg.App.RootAppID: {ID: cfg.App.RootAppID, Name: "root"}},
	}

	// 4. Providers
	reg := providers.NewRegistry()
	gh := cfg.Providers.GitHub
	if !gh.Disabled {
		reg.Register(github.ProviderName, github.Factory, providers.ProviderConfig{
			HTTPClient:  providers.NewHTTPClient(providers.HTTPConfig{Timeout: config.Dur(cfg.Providers.HTTPTimeout, 10*time.Second)}),
			TokenURL:    gh.TokenURL,
			ProfileURL:  gh.ProfileURL,
			EmailsURL:   gh.EmailsURL,
			EmailDomain: gh.EmailDomain,
		})
	}

	var fallback map[string]repository.Credentials
	if gh.ClientID != "" && gh.ClientSecret != "" {
		fallback = map[string]repository.Credentials{
			github.Prefix: {ClientID: gh.ClientID, ClientSecret: gh.ClientSecret},
		}
	}

	// 5. Services + métricas de dominio
	exm, err := metrics.NewExchange(deps.Registry)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	svcs := socialsvc.NewServices(socialsvc.Deps{
		Users:               a.Stores.Users,
		Apps:                apps,
		Providers:           reg,
		RootApp:             cfg.App.RootAppID,
		FallbackCredentials: fallback,
		Observer:            exm,
		OnUserUpdate:        exm.UserUpdated,
	})
	a.Exchange = svcs.Exchange

	issuer := strings.TrimSpace(cfg.Session.Issuer)
	if issuer == "" {
		issuer = cfg.Server.PublicBaseURL
	}
	a.Sessions, err = jwt.NewSessionIssuer(issuer, cfg.SessionSecret(), config.Dur(cfg.Session.TTL, time.Hour))
	if err != nil {
		return nil, fmt.Errorf("app: session issuer: %w", err)
	}

	// 6. HTTP
	mcfg := fedhttp.MetricsConfig{Registry: deps.Registry, Gatherer: deps.Gatherer}
	if a.Stores.PG != nil {
		mcfg.Pool = func() *pgxpool.Pool { return a.Stores.PG.Pool() }
	}
	metricsHandler, err := fedhttp.RegisterMetrics(mcfg)
	if err != nil {
		return nil, fmt.Errorf("app: http metrics: %w", err)
	}

	checks := map[string]health.Pinger{"store": a.Stores.Users, "cache": a.Cache}

	a.Handler = router.New(router.Deps{
		Callback:    socialctrl.NewCallbackController(svcs.Exchange, a.Sessions, cfg.Server.PublicBaseURL),
		Health:      health.NewHealthController(deps.Version, checks),
		Metrics:     metricsHandler,
		RateLimiter: newLimiter(cfg, a.Cache),
		TrustProxy:  cfg.RateLimit.TrustProxy,
	})

	log.Info("app wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Any("providers", reg.Names()),
		logger.Bool("rate_limit", cfg.RateLimit.Enabled),
		logger.Bool("trust_proxy", cfg.RateLimit.TrustProxy),
	)
	return a, nil
}

// newLimiter usa redis si el cache es redis; si no, memoria local.
func newLimiter(cfg *config.Config, c cache.Client) rate.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	rc := rate.Config{
		Prefix: cfg.Cache.Redis.Prefix + ":rl:",
		Max:    cfg.RateLimit.Max,
		Window: config.Dur(cfg.RateLimit.Window, time.Minute),
	}
	if client, ok := cache.RedisClient(c); ok {
		return rate.NewRedisLimiter(client, rc)
	}
	return rate.NewMemoryLimiter(rc)
}
