// Package github implementa el provider OAuth 2.0 de GitHub.
//
// GitHub no emite id_token: tras canjear el code hay que pedir /user y, si el
// usuario no expone email público, /user/emails.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/federation/internal/observability/logger"
	"github.com/dropDatabas3/federation/internal/providers"
)

const (
	// ProviderName es el segmento de ruta del callback.
	ProviderName = "github"

	// Prefix namespacea el identifier local: "gh" + id.
	Prefix = "gh"

	DefaultTokenURL    = "https://github.com/login/oauth/access_token"
	DefaultProfileURL  = "https://api.github.com/user"
	DefaultEmailDomain = "github.com"

	maxBodyBytes = 1 << 20
)

// Provider implementa providers.Provider contra la REST API de GitHub.
type Provider struct {
	tokenURL    string
	profileURL  string
	emailsURL   string
	emailDomain string

	http *http.Client
}

var _ providers.Provider = (*Provider)(nil)

// Factory crea el provider; registrar con providers.Registry.Register.
func Factory(cfg providers.ProviderConfig) (providers.Provider, error) {
	return New(cfg), nil
}

// New crea el provider aplicando los defaults públicos de GitHub.
func New(cfg providers.ProviderConfig) *Provider {
	p := &Provider{
		tokenURL:    strings.TrimSpace(cfg.TokenURL),
		profileURL:  strings.TrimRight(strings.TrimSpace(cfg.ProfileURL), "/"),
		emailsURL:   strings.TrimSpace(cfg.EmailsURL),
		emailDomain: strings.TrimSpace(cfg.EmailDomain),
		http:        cfg.HTTPClient,
	}
	if p.tokenURL == "" {
		p.tokenURL = DefaultTokenURL
	}
	if p.profileURL == "" {
		p.profileURL = DefaultProfileURL
	}
	if p.emailsURL == "" {
		p.emailsURL = p.profileURL + "/emails"
	}
	if p.emailDomain == "" {
		p.emailDomain = DefaultEmailDomain
	}
	if p.http == nil {
		p.http = providers.NewHTTPClient(providers.HTTPConfig{})
	}
	return p
}

func (p *Provider) Name() string   { return ProviderName }
func (p *Provider) Prefix() string { return Prefix }

// SyntheticEmail arma "<id>@github.com".
func (p *Provider) SyntheticEmail(externalID string) string {
	return externalID + "@" + p.emailDomain
}

// tokenPayload respeta el orden de campos que espera el token endpoint.
const tokenPayload = "code=%s&redirect_uri=%s&scope=&client_id=%s&client_secret=%s&grant_type=authorization_code"

// ExchangeToken canjea el authorization code por un access token.
func (p *Provider) ExchangeToken(ctx context.Context, code, redirectURI string, creds providers.Credentials) (string, error) {
	body := fmt.Sprintf(tokenPayload,
		url.QueryEscape(code),
		url.QueryEscape(redirectURI),
		url.QueryEscape(creds.ClientID),
		url.QueryEscape(creds.ClientSecret),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", providers.ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", providers.ErrTokenExchange, err)
	}
	defer drainClose(resp.Body)

	var token map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decode token response (status %d): %v", providers.ErrTokenExchange, resp.StatusCode, err)
	}
	at, _ := token["access_token"].(string)
	if strings.TrimSpace(at) == "" {
		if e, _ := token["error"].(string); e != "" {
			desc, _ := token["error_description"].(string)
			return "", fmt.Errorf("%w: github oauth error: %s - %s", providers.ErrTokenExchange, e, desc)
		}
		return "", fmt.Errorf("%w: no access_token in response", providers.ErrTokenExchange)
	}
	return at, nil
}

// FetchProfile pide /user. (nil, nil) cuando no hay body o no es JSON.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	resp, err := p.get(ctx, p.profileURL, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrProfileFetch, err)
	}
	defer drainClose(resp.Body)

	if !isJSONType(resp.Header.Get("Content-Type")) {
		logger.From(ctx).Debug("github profile response is not json",
			logger.Provider(ProviderName),
			logger.Status(resp.StatusCode),
			logger.String("content_type", resp.Header.Get("Content-Type")),
		)
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", providers.ErrProfileFetch, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var profile map[string]any
	if err := dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", providers.ErrProfileFetch, err)
	}
	return profile, nil
}

// FetchVerifiedEmail recorre /user/emails y elige el primario; si ninguno está
// marcado se queda con el último visto. Sin nada utilizable => email sintético.
func (p *Provider) FetchVerifiedEmail(ctx context.Context, externalID, accessToken string) (string, error) {
	log := logger.From(ctx).With(logger.Provider(ProviderName), logger.Op("FetchVerifiedEmail"))

	resp, err := p.get(ctx, p.emailsURL, accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", providers.ErrEmailFetch, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode/100 != 2 || !isJSONType(resp.Header.Get("Content-Type")) {
		log.Debug("emails endpoint unusable, using synthetic email", logger.Status(resp.StatusCode))
		return p.SyntheticEmail(externalID), nil
	}

	email, err := selectEmail(newEmailSeq(io.LimitReader(resp.Body, maxBodyBytes)))
	if err != nil {
		log.Debug("emails stream ended early", logger.Err(err))
	}
	if strings.TrimSpace(email) == "" {
		return p.SyntheticEmail(externalID), nil
	}
	return email, nil
}

func (p *Provider) get(ctx context.Context, endpoint, accessToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Debug("github api call",
		logger.Path(req.URL.Path),
		logger.Status(resp.StatusCode),
		logger.DurationMs(time.Since(start)),
	)
	return resp, nil
}

// drainClose consume el resto del body para que la conexión vuelva al pool.
func drainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxBodyBytes))
	_ = rc.Close()
}

// isJSONType acepta application/json y los sufijos +json.
func isJSONType(ct string) bool {
	if strings.TrimSpace(ct) == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
