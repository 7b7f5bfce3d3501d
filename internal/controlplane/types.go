// Package controlplane resuelve los apps (tenants) de la federación y sus
// credenciales OAuth por provider.
package controlplane

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// AppFile es el schema YAML de un app en disco.
//
//	id: root
//	name: Root app
//	oauth:
//	  gh:
//	    clientId: Iv1.abc
//	    clientSecretEnc: "<nonce>|<ct>"
type AppFile struct {
	ID    string                `yaml:"id" json:"id"`
	Name  string                `yaml:"name,omitempty" json:"name,omitempty"`
	OAuth map[string]OAuthEntry `yaml:"oauth,omitempty" json:"oauth,omitempty"`
}

// OAuthEntry guarda el secret cifrado con secretbox. ClientSecret (plano) se
// acepta al leer para dev y nunca se escribe.
type OAuthEntry struct {
	ClientID        string `yaml:"clientId" json:"clientId"`
	ClientSecretEnc string `yaml:"clientSecretEnc,omitempty" json:"clientSecretEnc,omitempty"`
	ClientSecret    string `yaml:"clientSecret,omitempty" json:"-"`
}

var ErrBadInput = errors.New("controlplane: bad input")

// ValidAppID acepta [a-zA-Z0-9_-]; nada que pueda escapar del directorio.
func ValidAppID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Static es un AppRepository fijo (root app desde config, tests).
type Static map[string]*repository.App

func (s Static) GetApp(_ context.Context, appID string) (*repository.App, error) {
	a, ok := s[strings.TrimSpace(appID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

// Chain consulta los repos en orden; pasa al siguiente sólo ante ErrNotFound.
// Se usa para que el root app exista aunque no tenga YAML en disco.
type Chain []repository.AppRepository

func (c Chain) GetApp(ctx context.Context, appID string) (*repository.App, error) {
	for _, r := range c {
		a, err := r.GetApp(ctx, appID)
		if err == nil {
			return a, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, repository.ErrNotFound
}
