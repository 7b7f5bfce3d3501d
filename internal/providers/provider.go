// Package providers define el contrato de los IdPs externos de la federación.
//
// Cada provider vive en su propio sub-paquete (github, ...) y se registra en un
// Registry por nombre. El exchange nunca ramifica por nombre de provider: todo lo
// específico (endpoints, prefijo del identifier, email sintético) queda detrás de
// la interfaz Provider.
package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// Credentials son las claves OAuth resueltas para el app.
type Credentials = repository.Credentials

// Provider es un IdP externo que canjea un authorization code por un perfil.
type Provider interface {
	// Name es el nombre de ruta ("github").
	Name() string

	// Prefix namespacea el identifier local ("gh" => "gh42").
	Prefix() string

	// SyntheticEmail arma el email de fallback cuando el IdP no expone ninguno.
	SyntheticEmail(externalID string) string

	// ExchangeToken canjea el code por un access token.
	// Falla con ErrTokenExchange si no hay access_token.
	ExchangeToken(ctx context.Context, code, redirectURI string, creds Credentials) (string, error)

	// FetchProfile retorna el perfil crudo. (nil, nil) significa "sin identidad
	// utilizable" (sin body o content-type no JSON) y no es un error.
	FetchProfile(ctx context.Context, accessToken string) (map[string]any, error)

	// FetchVerifiedEmail busca el email primario; degrada a SyntheticEmail.
	FetchVerifiedEmail(ctx context.Context, externalID, accessToken string) (string, error)
}

// ProviderConfig configura una instancia de provider.
type ProviderConfig struct {
	// HTTPClient compartido por todo el proceso (ver NewHTTPClient).
	HTTPClient *http.Client

	// Endpoints opcionales; vacío => defaults públicos del provider.
	TokenURL   string
	ProfileURL string
	EmailsURL  string

	// EmailDomain para emails sintéticos; vacío => default del provider.
	EmailDomain string
}

var (
	// ErrTokenExchange: el canje del code falló (transporte, JSON, sin access_token).
	ErrTokenExchange = errors.New("provider: token exchange failed")

	// ErrProfileFetch: la llamada de perfil falló a nivel transporte o decoding.
	ErrProfileFetch = errors.New("provider: profile fetch failed")

	// ErrEmailFetch: la llamada de emails falló a nivel transporte.
	ErrEmailFetch = errors.New("provider: email fetch failed")
)
