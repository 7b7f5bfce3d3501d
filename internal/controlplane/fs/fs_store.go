// Package fs implementa el control plane de apps sobre YAML en disco:
// <root>/apps/<appID>.yaml, con client secrets cifrados por secretbox.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	cp "github.com/dropDatabas3/federation/internal/controlplane"
	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// Sealer cifra/descifra secrets (ver secretbox.Box).
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// Provider implementa repository.AppRepository usando YAML en disco.
type Provider struct {
	root string
	box  Sealer
}

var _ repository.AppRepository = (*Provider)(nil)

// New crea el provider. box puede ser nil si ningún app usa clientSecretEnc.
func New(root string, box Sealer) *Provider {
	return &Provider{root: filepath.Clean(root), box: box}
}

// Root retorna el directorio raíz configurado.
func (p *Provider) Root() string { return p.root }

func (p *Provider) appsDir() string          { return filepath.Join(p.root, "apps") }
func (p *Provider) appFile(id string) string { return filepath.Join(p.appsDir(), id+".yaml") }

func (p *Provider) GetApp(ctx context.Context, appID string) (*repository.App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	appID = strings.TrimSpace(appID)
	if !cp.ValidAppID(appID) {
		return nil, repository.ErrNotFound
	}
	b, err := os.ReadFile(p.appFile(appID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("read app %s: %w", appID, err)
	}
	var f cp.AppFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse app %s: %w", appID, err)
	}
	if f.ID != "" && f.ID != appID {
		return nil, fmt.Errorf("app file %s declares id %q", appID, f.ID)
	}

	app := &repository.App{ID: appID, Name: f.Name, OAuth: make(map[string]repository.Credentials, len(f.OAuth))}
	for prefix, e := range f.OAuth {
		secret := e.ClientSecret
		if e.ClientSecretEnc != "" {
			if p.box == nil {
				return nil, fmt.Errorf("app %s/%s: encrypted secret but no secretbox key", appID, prefix)
			}
			if secret, err = p.box.Open(e.ClientSecretEnc); err != nil {
				return nil, fmt.Errorf("app %s/%s: decrypt secret: %w", appID, prefix, err)
			}
		}
		app.OAuth[prefix] = repository.Credentials{ClientID: e.ClientID, ClientSecret: secret}
	}
	return app, nil
}

// PutApp persiste el app cifrando los secrets. Requiere Sealer.
func (p *Provider) PutApp(ctx context.Context, app *repository.App) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if app == nil || !cp.ValidAppID(app.ID) {
		return cp.ErrBadInput
	}
	f := cp.AppFile{ID: app.ID, Name: app.Name, OAuth: make(map[string]cp.OAuthEntry, len(app.OAuth))}
	for prefix, c := range app.OAuth {
		e := cp.OAuthEntry{ClientID: c.ClientID}
		if c.ClientSecret != "" {
			if p.box == nil {
				return fmt.Errorf("app %s/%s: secretbox key required to store secrets", app.ID, prefix)
			}
			enc, err := p.box.Seal(c.ClientSecret)
			if err != nil {
				return fmt.Errorf("app %s/%s: encrypt secret: %w", app.ID, prefix, err)
			}
			e.ClientSecretEnc = enc
		}
		f.OAuth[prefix] = e
	}
	b, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	return writeFileAtomic(p.appFile(app.ID), b, 0o600)
}

// ListApps retorna los IDs presentes, ordenados.
func (p *Provider) ListApps(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.appsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		if id := strings.TrimSuffix(name, ".yaml"); cp.ValidAppID(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
