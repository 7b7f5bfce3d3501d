package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/federation/internal/domain/repository"
	"github.com/dropDatabas3/federation/internal/observability/logger"
	"github.com/dropDatabas3/federation/internal/providers"
	"go.uber.org/zap"
)

// State es la etapa del exchange.
type State int

const (
	StateIdle State = iota
	StateAwaitingCode
	StateTokenExchanged
	StateProfileFetched
	StateReconciled
	StateGated
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateTokenExchanged:
		return "token_exchanged"
	case StateProfileFetched:
		return "profile_fetched"
	case StateReconciled:
		return "reconciled"
	case StateGated:
		return "gated"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Grant es el callback entrante del provider.
type Grant struct {
	Provider    string
	Code        string
	RedirectURI string
	// AppID es opcional; vacío => root app.
	AppID string
}

// Principal es la sesión autenticada: sólo existe para usuarios activos.
type Principal struct {
	User            *repository.LocalUser
	Provider        string
	Created         bool
	AuthenticatedAt time.Time
}

// Result describe cómo terminó el exchange.
type Result struct {
	State     State
	Principal *Principal
	Created   bool
	// Reason explica un resultado no autenticado (KindNoAttempt, KindEmptyProfile, ...).
	Reason Kind
}

// Authenticated indica si se produjo un Principal.
func (r *Result) Authenticated() bool { return r != nil && r.Principal != nil }

// ProviderLookup resuelve providers habilitados (ver providers.Registry).
type ProviderLookup interface {
	Get(name string) (providers.Provider, bool, error)
}

// Observer recibe métricas del exchange. Opcional.
type Observer interface {
	ObserveStage(provider string, stage State, d time.Duration, err error)
	ObserveOutcome(provider string, outcome string, d time.Duration)
}

// ExchangeService canjea un grant por un Principal.
type ExchangeService interface {
	// Exchange nunca falla por "sin code" o "sin perfil": retorna un Result no
	// autenticado y error nil. Los demás fallos retornan *Error junto al Result.
	Exchange(ctx context.Context, g Grant) (*Result, error)
}

// ExchangeDeps contiene las dependencias del exchange.
type ExchangeDeps struct {
	Providers  ProviderLookup
	Apps       repository.AppRepository
	Reconciler Reconciler
	RootApp    string
	// FallbackCredentials por prefix de provider, usadas si el app no tiene propias.
	FallbackCredentials map[string]repository.Credentials
	Observer            Observer
	Now                 func() time.Time
}

type exchangeService struct {
	providers  ProviderLookup
	apps       repository.AppRepository
	reconciler Reconciler
	rootApp    string
	fallback   map[string]repository.Credentials
	obs        Observer
	now        func() time.Time
}

// NewExchangeService crea un ExchangeService.
func NewExchangeService(d ExchangeDeps) ExchangeService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &exchangeService{
		providers:  d.Providers,
		apps:       d.Apps,
		reconciler: d.Reconciler,
		rootApp:    d.RootApp,
		fallback:   d.FallbackCredentials,
		obs:        d.Observer,
		now:        now,
	}
}

// run acumula el estado de un exchange en curso.
type run struct {
	svc      *exchangeService
	provider string
	started  time.Time
	stageAt  time.Time
	res      *Result
}

func (s *exchangeService) Exchange(ctx context.Context, g Grant) (*Result, error) {
	tenant := strings.TrimSpace(g.AppID)
	if tenant == "" {
		tenant = s.rootApp
	}
	name := strings.ToLower(strings.TrimSpace(g.Provider))

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("social.exchange"),
		logger.Op("Exchange"),
		logger.Provider(name),
		logger.AppID(tenant),
	)
	ctx = logger.ToContext(ctx, log)

	t0 := s.now()
	r := &run{svc: s, provider: name, started: t0, stageAt: t0, res: &Result{State: StateIdle}}

	p, ok, err := s.providers.Get(name)
	if err != nil {
		return r.fail(log, KindExchange, fmt.Errorf("provider %s: %w", name, err))
	}
	if !ok {
		// la ruta no es de un provider habilitado
		log.Debug("provider not enabled")
		return r.res, nil
	}
	r.advance(StateAwaitingCode, nil)

	code := strings.TrimSpace(g.Code)
	if code == "" {
		return r.benign(log, KindNoAttempt)
	}

	creds, err := s.credentials(ctx, tenant, p.Prefix())
	if err != nil {
		return r.fail(log, KindExchange, err)
	}

	accessToken, err := p.ExchangeToken(ctx, code, g.RedirectURI, creds)
	if err != nil {
		r.observe(StateTokenExchanged, err)
		return r.fail(log, KindExchange, err)
	}
	r.advance(StateTokenExchanged, nil)

	raw, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		r.observe(StateProfileFetched, err)
		return r.fail(log, KindExchange, err)
	}
	if raw == nil {
		return r.benign(log, KindEmptyProfile)
	}
	id, err := Normalize(ctx, raw, p, func(ctx context.Context, externalID string) (string, error) {
		return p.FetchVerifiedEmail(ctx, externalID, accessToken)
	})
	if err != nil {
		r.observe(StateProfileFetched, err)
		return r.fail(log, KindExchange, err)
	}
	if id == nil {
		return r.benign(log, KindEmptyProfile)
	}
	r.advance(StateProfileFetched, nil)
	log = log.With(logger.Identifier(id.Identifier()))

	user, created, err := s.reconciler.Resolve(ctx, tenant, id)
	if err != nil {
		r.observe(StateReconciled, err)
		return r.fail(log, KindProvisioning, err)
	}
	r.res.Created = created
	r.advance(StateReconciled, nil)

	if !user.Active {
		r.advance(StateGated, nil)
		log.Warn("account disabled", logger.UserID(user.ID))
		r.outcome(KindAccountInactive.String())
		return r.res, &Error{Kind: KindAccountInactive, Op: "Exchange", Err: ErrAccountInactive, User: user}
	}

	r.res.State = StateDone
	r.res.Principal = &Principal{
		User:            user,
		Provider:        name,
		Created:         created,
		AuthenticatedAt: s.now(),
	}
	log.Info("federated login", logger.UserID(user.ID), logger.Bool("created", created))
	r.outcome("success")
	return r.res, nil
}

// credentials resuelve las claves OAuth del app, con fallback global por provider.
func (s *exchangeService) credentials(ctx context.Context, tenant, prefix string) (repository.Credentials, error) {
	if s.apps == nil {
		return s.fallbackCredentials(tenant, prefix)
	}
	app, err := s.apps.GetApp(ctx, tenant)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Credentials{}, fmt.Errorf("app %q not found", tenant)
		}
		return repository.Credentials{}, fmt.Errorf("resolve app %q: %w", tenant, err)
	}
	if c, ok := app.OAuthCredentials(prefix); ok {
		return c, nil
	}
	return s.fallbackCredentials(tenant, prefix)
}

func (s *exchangeService) fallbackCredentials(tenant, prefix string) (repository.Credentials, error) {
	if c, ok := s.fallback[prefix]; ok && !c.Empty() {
		return c, nil
	}
	return repository.Credentials{}, fmt.Errorf("app %q has no oauth credentials for %q", tenant, prefix)
}

func (r *run) advance(st State, err error) {
	r.observe(st, err)
	r.res.State = st
}

func (r *run) observe(st State, err error) {
	now := r.svc.now()
	if r.svc.obs != nil && st != StateAwaitingCode {
		r.svc.obs.ObserveStage(r.provider, st, now.Sub(r.stageAt), err)
	}
	r.stageAt = now
}

func (r *run) outcome(o string) {
	if r.svc.obs != nil {
		r.svc.obs.ObserveOutcome(r.provider, o, r.svc.now().Sub(r.started))
	}
}

// benign cierra el exchange sin autenticación y sin error.
func (r *run) benign(log *zap.Logger, k Kind) (*Result, error) {
	log.Debug("no authentication", logger.Stage(r.res.State.String()), logger.Outcome(k.String()))
	r.res.State = StateFailed
	r.res.Reason = k
	r.outcome(k.String())
	return r.res, nil
}

func (r *run) fail(log *zap.Logger, k Kind, err error) (*Result, error) {
	stage := r.res.State.String()
	r.res.State = StateFailed
	r.res.Reason = k

	var se *Error
	if !errors.As(err, &se) {
		se = newError(k, "Exchange", err)
	}
	log.Error("federated exchange failed",
		logger.Stage(stage),
		logger.Outcome(se.Kind.String()),
		logger.Err(err),
	)
	r.outcome(se.Kind.String())
	return r.res, se
}
