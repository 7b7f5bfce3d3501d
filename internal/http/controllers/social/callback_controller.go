// Package social contiene el controller del callback de login federado.
package social

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/federation/internal/http/dto/social"
	httperrors "github.com/dropDatabas3/federation/internal/http/errors"
	"github.com/dropDatabas3/federation/internal/jwt"
	"github.com/dropDatabas3/federation/internal/observability/logger"
	svc "github.com/dropDatabas3/federation/internal/services/social"
)

// SessionIssuer emite el token entregado al cliente (ver jwt.SessionIssuer).
type SessionIssuer interface {
	Issue(s jwt.Subject) (string, time.Time, error)
}

// CallbackController maneja GET /auth/{provider}/callback y el alias /{provider}_auth.
type CallbackController struct {
	exchange      svc.ExchangeService
	sessions      SessionIssuer
	publicBaseURL string
}

// NewCallbackController crea el controller. publicBaseURL arma el redirect_uri
// que se reenvía al provider (debe coincidir con el registrado en la OAuth app).
func NewCallbackController(exchange svc.ExchangeService, sessions SessionIssuer, publicBaseURL string) *CallbackController {
	return &CallbackController{
		exchange:      exchange,
		sessions:      sessions,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("CallbackController.Callback"),
		logger.Provider(provider),
	)

	q := r.URL.Query()
	if idpErr := strings.TrimSpace(q.Get("error")); idpErr != "" {
		log.Warn("provider returned error",
			logger.String("error", idpErr),
			logger.String("description", strings.TrimSpace(q.Get("error_description"))),
		)
		httperrors.WriteError(w, httperrors.ErrUnauthenticated.WithDetail("provider_error: "+idpErr))
		return
	}

	appID := strings.TrimSpace(q.Get("appid"))
	res, err := c.exchange.Exchange(ctx, svc.Grant{
		Provider:    provider,
		Code:        q.Get("code"),
		RedirectURI: c.redirectURI(r.URL.Path, appID),
		AppID:       appID,
	})
	if err != nil {
		httperrors.WriteError(w, httperrors.FromSocial(err))
		return
	}
	if res.State == svc.StateIdle {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("provider not enabled"))
		return
	}
	if !res.Authenticated() {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated.WithDetail(res.Reason.String()))
		return
	}

	p := res.Principal
	token, exp, err := c.sessions.Issue(jwt.Subject{
		UserID:     p.User.ID,
		AppID:      p.User.AppID,
		Identifier: p.User.Identifier,
		Provider:   p.Provider,
	})
	if err != nil {
		log.Error("session issue failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.CallbackResponse{
		User:         dto.FromUser(p.User),
		Provider:     p.Provider,
		Created:      p.Created,
		SessionToken: token,
		ExpiresAt:    exp,
	})
	log.Debug("callback completed", logger.UserID(p.User.ID), logger.Bool("created", p.Created))
}

// redirectURI reproduce la URL pública del callback; appid viaja como query.
func (c *CallbackController) redirectURI(path, appID string) string {
	u := c.publicBaseURL + path
	if appID != "" {
		u += "?appid=" + url.QueryEscape(appID)
	}
	return u
}
