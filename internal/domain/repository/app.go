package repository

import (
	"context"
	"strings"
)

// Credentials son las claves OAuth de un app para un provider.
type Credentials struct {
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
}

// Empty indica que faltan client id o secret.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == ""
}

// App es el tenant: scopea identifiers y aporta credenciales OAuth por provider.
type App struct {
	ID   string
	Name string
	// OAuth indexado por providerPrefix ("gh").
	OAuth map[string]Credentials
}

// OAuthCredentials retorna las claves del app para el provider.
func (a *App) OAuthCredentials(providerPrefix string) (Credentials, bool) {
	if a == nil || a.OAuth == nil {
		return Credentials{}, false
	}
	c, ok := a.OAuth[providerPrefix]
	if !ok || c.Empty() {
		return Credentials{}, false
	}
	return c, true
}

// AppRepository resuelve apps (tenants) por ID.
type AppRepository interface {
	// GetApp retorna ErrNotFound si el app no existe.
	GetApp(ctx context.Context, appID string) (*App, error)
}
