package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env       string `yaml:"env"`
		RootAppID string `yaml:"root_app_id"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// URL pública usada para armar el redirect_uri del callback.
		PublicBaseURL   string `yaml:"public_base_url"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind   string `yaml:"kind"` // memory | redis
		AppTTL string `yaml:"app_ttl"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	ControlPlane struct {
		FSRoot string `yaml:"fs_root"`
	} `yaml:"control_plane"`

	Providers struct {
		HTTPTimeout string `yaml:"http_timeout"`
		GitHub      struct {
			Disabled     bool   `yaml:"disabled"`
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			TokenURL     string `yaml:"token_url"`
			ProfileURL   string `yaml:"profile_url"`
			EmailsURL    string `yaml:"emails_url"`
			EmailDomain  string `yaml:"email_domain"`
		} `yaml:"github"`
	} `yaml:"providers"`

	Session struct {
		Issuer string `yaml:"issuer"`
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"session"`

	RateLimit struct {
		Enabled bool   `yaml:"enabled"`
		Max     int    `yaml:"max"` // requests por ventana, por IP y ruta
		Window  string `yaml:"window"`
		// TrustProxy usa X-Forwarded-For como IP del cliente.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"rate_limit"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML (si existe), aplica defaults y overrides de env.
// path vacío o inexistente => sólo defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.RootAppID == "" {
		c.App.RootAppID = "root"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://localhost:8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.AppTTL == "" {
		c.Cache.AppTTL = "60s"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "fed"
	}
	if c.ControlPlane.FSRoot == "" {
		c.ControlPlane.FSRoot = "./data"
	}
	if c.Providers.HTTPTimeout == "" {
		c.Providers.HTTPTimeout = "10s"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "1h"
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 30
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("ROOT_APP_ID"); ok {
		c.App.RootAppID = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_BASE_URL"); ok {
		c.Server.PublicBaseURL = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("CACHE_APP_TTL"); ok {
		c.Cache.AppTTL = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CONTROL_PLANE_FS_ROOT"); ok {
		c.ControlPlane.FSRoot = v
	}
	if v, ok := getEnvStr("PROVIDER_HTTP_TIMEOUT"); ok {
		c.Providers.HTTPTimeout = v
	}
	if v, ok := getEnvBool("GITHUB_DISABLED"); ok {
		c.Providers.GitHub.Disabled = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.Providers.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.Providers.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_TOKEN_URL"); ok {
		c.Providers.GitHub.TokenURL = v
	}
	if v, ok := getEnvStr("GITHUB_PROFILE_URL"); ok {
		c.Providers.GitHub.ProfileURL = v
	}
	if v, ok := getEnvStr("GITHUB_EMAILS_URL"); ok {
		c.Providers.GitHub.EmailsURL = v
	}
	if v, ok := getEnvStr("SESSION_ISSUER"); ok {
		c.Session.Issuer = v
	}
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Session.TTL = v
	}
	if v, ok := getEnvBool("RATE_LIMIT_ENABLED"); ok {
		c.RateLimit.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_MAX"); ok {
		c.RateLimit.Max = v
	}
	if v, ok := getEnvStr("RATE_LIMIT_WINDOW"); ok {
		c.RateLimit.Window = v
	}
	if v, ok := getEnvBool("RATE_LIMIT_TRUST_PROXY"); ok {
		c.RateLimit.TrustProxy = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// IsProd indica APP_ENV=prod|production.
func (c *Config) IsProd() bool {
	e := strings.ToLower(strings.TrimSpace(c.App.Env))
	return e == "prod" || e == "production"
}

// devSessionSecret se usa fuera de prod cuando no hay SESSION_SECRET.
const devSessionSecret = "dev-only-session-secret-change-me!!"

// SessionSecret retorna el secret configurado o el de dev.
func (c *Config) SessionSecret() []byte {
	if c.Session.Secret != "" {
		return []byte(c.Session.Secret)
	}
	if c.IsProd() {
		return nil
	}
	return []byte(devSessionSecret)
}

// Validate chequea drivers conocidos, duraciones parseables y secrets en prod.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Storage.Driver) {
	case "memory", "mem":
	case "postgres", "pg", "postgresql":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}

	switch strings.ToLower(c.Cache.Kind) {
	case "memory", "mem":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}

	for name, v := range map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"cache.app_ttl":                      c.Cache.AppTTL,
		"providers.http_timeout":             c.Providers.HTTPTimeout,
		"session.ttl":                        c.Session.TTL,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"rate_limit.window":                  c.RateLimit.Window,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.IsProd() && len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("session.secret (SESSION_SECRET) must be at least 32 bytes in prod"))
	}
	if strings.TrimSpace(c.App.RootAppID) == "" {
		errs = append(errs, errors.New("app.root_app_id is required"))
	}
	return errors.Join(errs...)
}

// Dur parsea una duración ya validada; vacío o inválido => def.
func Dur(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}
