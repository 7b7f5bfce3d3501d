package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/federation/internal/domain/repository"
	"github.com/dropDatabas3/federation/internal/observability/logger"
	"github.com/dropDatabas3/federation/internal/security/password"
)

// Reconciler mapea una identidad normalizada a un usuario local.
type Reconciler interface {
	// Resolve busca por (tenant, identifier); crea o actualiza según corresponda.
	// created=true sólo si el usuario se creó en esta llamada.
	Resolve(ctx context.Context, tenant string, id *NormalizedIdentity) (*repository.LocalUser, bool, error)
}

// PasswordHasher produce el password placeholder de cuentas nuevas.
type PasswordHasher func() (string, error)

// ReconcileDeps contiene las dependencias del reconciler.
type ReconcileDeps struct {
	Users repository.UserRepository
	// HashPassword es opcional; default: argon2id de 32 bytes aleatorios.
	HashPassword PasswordHasher
	// OnUpdate es opcional; se invoca por cada Update emitido (métricas).
	OnUpdate func(fields []string)
}

type reconciler struct {
	users    repository.UserRepository
	hash     PasswordHasher
	onUpdate func(fields []string)
	group    singleflight.Group
}

// resolveTimeout acota una resolución que ya no depende del request.
const resolveTimeout = 30 * time.Second

type resolved struct {
	user    *repository.LocalUser
	created bool
}

// NewReconciler crea el Reconciler.
func NewReconciler(d ReconcileDeps) Reconciler {
	h := d.HashPassword
	if h == nil {
		h = func() (string, error) { return password.RandomHash(password.Federated, 32) }
	}
	return &reconciler{users: d.Users, hash: h, onUpdate: d.OnUpdate}
}

func (r *reconciler) Resolve(ctx context.Context, tenant string, id *NormalizedIdentity) (*repository.LocalUser, bool, error) {
	if id == nil || id.ExternalID == "" {
		return nil, false, newErrorf(KindProvisioning, "Resolve", "identity is required")
	}
	// logins concurrentes del mismo identifier comparten una sola resolución.
	// La resolución corre desacoplada del request que la inició: si ese cliente
	// corta, los demás siguen esperando el mismo resultado.
	key := tenant + "\x00" + id.Identifier()
	leader := false
	ch := r.group.DoChan(key, func() (any, error) {
		leader = true
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		u, created, err := r.resolve(fctx, tenant, id)
		if err != nil {
			return nil, err
		}
		return resolved{user: u, created: created}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, false, newError(KindProvisioning, "Resolve", ctx.Err())
	}
	if res.Err != nil {
		return nil, false, res.Err
	}
	v := res.Val.(resolved)
	if !leader {
		logger.From(ctx).Debug("reconcile collapsed with in-flight call",
			logger.Component("social.reconcile"),
			logger.AppID(tenant),
			logger.Identifier(id.Identifier()),
		)
	}
	// sólo quien ejecutó el create lo reporta
	return v.user.Clone(), v.created && leader, nil
}

func (r *reconciler) resolve(ctx context.Context, tenant string, id *NormalizedIdentity) (*repository.LocalUser, bool, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("social.reconcile"),
		logger.AppID(tenant),
		logger.Identifier(id.Identifier()),
	)
	identifier := id.Identifier()

	existing, err := r.users.GetByIdentifier(ctx, tenant, identifier)
	switch {
	case err == nil:
		u, err := r.merge(ctx, existing, id)
		return u, false, err
	case !repository.IsNotFound(err):
		log.Error("user lookup failed", logger.Err(err))
		return nil, false, newError(KindProvisioning, "Resolve", fmt.Errorf("lookup %s: %w", identifier, err))
	}

	nu, err := r.newUser(tenant, id)
	if err != nil {
		return nil, false, newError(KindProvisioning, "Resolve", err)
	}
	newID, err := r.users.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// otra instancia ganó el primer login: se trata como existente
			log.Info("create conflict, re-reading user")
			existing, gerr := r.users.GetByIdentifier(ctx, tenant, identifier)
			if gerr != nil {
				return nil, false, newError(KindProvisioning, "Resolve", fmt.Errorf("re-read after conflict: %w", gerr))
			}
			u, err := r.merge(ctx, existing, id)
			return u, false, err
		}
		log.Error("user create failed", logger.Err(err))
		return nil, false, newError(KindProvisioning, "Resolve", fmt.Errorf("create %s: %w", identifier, err))
	}
	if strings.TrimSpace(newID) == "" {
		log.Error("user create returned no id")
		return nil, false, newErrorf(KindProvisioning, "Resolve", "create %s: store returned no id", identifier)
	}
	nu.ID = newID

	log.Info("user provisioned", logger.UserID(newID), logger.EmailMasked(nu.Email))
	return nu, true, nil
}

func (r *reconciler) newUser(tenant string, id *NormalizedIdentity) (*repository.LocalUser, error) {
	pwd, err := r.hash()
	if err != nil {
		return nil, fmt.Errorf("password placeholder: %w", err)
	}
	email := id.Email
	if strings.TrimSpace(email) == "" {
		email = id.FallbackEmail
	}
	return &repository.LocalUser{
		AppID:      tenant,
		Identifier: id.Identifier(),
		Email:      email,
		Name:       id.DisplayName,
		Picture:    id.PictureURL,
		Active:     true,
		Password:   pwd,
	}, nil
}

// merge actualiza picture/email si cambiaron. Sin cambios no hay Update.
func (r *reconciler) merge(ctx context.Context, existing *repository.LocalUser, id *NormalizedIdentity) (*repository.LocalUser, error) {
	u := existing.Clone()
	var changed []string

	if u.Picture != id.PictureURL {
		u.Picture = id.PictureURL
		changed = append(changed, "picture")
	}
	if strings.TrimSpace(id.Email) != "" && u.Email != id.Email {
		u.Email = id.Email
		changed = append(changed, "email")
	}
	if len(changed) == 0 {
		return u, nil
	}

	if err := r.users.Update(ctx, u); err != nil {
		logger.From(ctx).Error("user update failed",
			logger.Component("social.reconcile"),
			logger.UserID(u.ID),
			logger.Err(err),
		)
		return nil, newError(KindProvisioning, "Resolve", fmt.Errorf("update %s: %w", u.Identifier, err))
	}
	if r.onUpdate != nil {
		r.onUpdate(changed)
	}
	logger.From(ctx).Debug("user updated",
		logger.Component("social.reconcile"),
		logger.UserID(u.ID),
		logger.Any("fields", changed),
	)
	return u, nil
}
