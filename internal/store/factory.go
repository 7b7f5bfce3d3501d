// Package store abre el UserRepository configurado (memory | postgres).
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/federation/internal/domain/repository"
	"github.com/dropDatabas3/federation/internal/store/memory"
	"github.com/dropDatabas3/federation/internal/store/pg"
	migrations "github.com/dropDatabas3/federation/migrations/postgres"
)

// Config selecciona el driver.
type Config struct {
	Driver  string // "memory" | "postgres"
	DSN     string
	Pool    pg.PoolConfig
	Migrate bool // aplica migraciones al abrir (postgres)
}

// Stores agrupa lo abierto. Close libera el pool si existe.
type Stores struct {
	Users repository.UserRepository
	PG    *pg.Store // nil con driver memory
	close func()
}

func (s *Stores) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// Open abre el store según cfg.Driver.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory", "mem":
		return &Stores{Users: memory.NewUserStore()}, nil
	case "postgres", "pg", "postgresql":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("store: postgres requires a DSN")
		}
		s, err := pg.New(ctx, cfg.DSN, cfg.Pool)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		if cfg.Migrate {
			if _, err := s.Migrate(ctx, migrations.FS); err != nil {
				s.Close()
				return nil, fmt.Errorf("store: migrate: %w", err)
			}
		}
		return &Stores{Users: s.Users(), PG: s, close: s.Close}, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
