package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/federation/internal/cache"
	"github.com/dropDatabas3/federation/internal/domain/repository"
	"github.com/dropDatabas3/federation/internal/observability/logger"
)

// SecretSealer protege los secrets mientras viven en el cache (redis es compartido).
type SecretSealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// Cached envuelve un AppRepository con cache + singleflight.
type Cached struct {
	inner repository.AppRepository
	cache cache.Client
	box   SecretSealer
	ttl   time.Duration
	group singleflight.Group
}

var _ repository.AppRepository = (*Cached)(nil)

// CachedOptions configura Cached.
type CachedOptions struct {
	TTL time.Duration // default 60s
	// Box es obligatorio salvo que se acepte guardar secrets en claro (sólo memory).
	Box SecretSealer
}

// NewCached crea el resolver cacheado.
func NewCached(inner repository.AppRepository, c cache.Client, opt CachedOptions) *Cached {
	ttl := opt.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cached{inner: inner, cache: c, box: opt.Box, ttl: ttl}
}

func cacheKey(appID string) string { return "app:" + appID }

type cachedApp struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name,omitempty"`
	OAuth map[string]cachedCreds `json:"oauth,omitempty"`
}

type cachedCreds struct {
	ClientID string `json:"cid"`
	Secret   string `json:"sec,omitempty"`
}

func (c *Cached) GetApp(ctx context.Context, appID string) (*repository.App, error) {
	log := logger.From(ctx).With(logger.Component("controlplane.cached"), logger.AppID(appID))

	if raw, err := c.cache.Get(ctx, cacheKey(appID)); err == nil {
		app, derr := c.decode(raw)
		if derr == nil {
			return app, nil
		}
		log.Warn("dropping undecodable cache entry", logger.Err(derr))
		_ = c.cache.Delete(ctx, cacheKey(appID))
	} else if !cache.IsNotFound(err) {
		log.Warn("app cache get failed", logger.Err(err))
	}

	v, err, _ := c.group.Do(appID, func() (any, error) {
		app, err := c.inner.GetApp(ctx, appID)
		if err != nil {
			return nil, err
		}
		if raw, err := c.encode(app); err != nil {
			log.Warn("app cache encode failed", logger.Err(err))
		} else if err := c.cache.Set(ctx, cacheKey(appID), raw, c.ttl); err != nil {
			log.Warn("app cache set failed", logger.Err(err))
		}
		return app, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneApp(v.(*repository.App)), nil
}

// Invalidate descarta el app del cache (ej: cambió su YAML).
func (c *Cached) Invalidate(ctx context.Context, appID string) error {
	return c.cache.Delete(ctx, cacheKey(appID))
}

func (c *Cached) encode(app *repository.App) (string, error) {
	out := cachedApp{ID: app.ID, Name: app.Name, OAuth: make(map[string]cachedCreds, len(app.OAuth))}
	for prefix, cr := range app.OAuth {
		sec := cr.ClientSecret
		if c.box != nil && sec != "" {
			var err error
			if sec, err = c.box.Seal(sec); err != nil {
				return "", err
			}
		}
		out.OAuth[prefix] = cachedCreds{ClientID: cr.ClientID, Secret: sec}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func (c *Cached) decode(raw string) (*repository.App, error) {
	var in cachedApp
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, errors.New("cached app without id")
	}
	app := &repository.App{ID: in.ID, Name: in.Name, OAuth: make(map[string]repository.Credentials, len(in.OAuth))}
	for prefix, cr := range in.OAuth {
		sec := cr.Secret
		if c.box != nil && sec != "" {
			var err error
			if sec, err = c.box.Open(sec); err != nil {
				return nil, fmt.Errorf("open %s secret: %w", prefix, err)
			}
		}
		app.OAuth[prefix] = repository.Credentials{ClientID: cr.ClientID, ClientSecret: sec}
	}
	return app, nil
}

func cloneApp(a *repository.App) *repository.App {
	c := *a
	c.OAuth = make(map[string]repository.Credentials, len(a.OAuth))
	for k, v := range a.OAuth {
		c.OAuth[k] = v
	}
	return &c
}
