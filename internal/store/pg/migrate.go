package pg

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/federation/internal/observability/logger"
)

func migrationLockID(scope string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("fed:migrate:"))
	_, _ = h.Write([]byte(scope))
	return int64(h.Sum64())
}

// withMigrationLock toma un advisory lock en una conexión dedicada y ejecuta fn.
func withMigrationLock(ctx context.Context, pool *pgxpool.Pool, wait time.Duration, fn func(ctx context.Context) error) error {
	log := logger.From(ctx).With(logger.Component("store.pg.migrate"))
	lockID := migrationLockID("local_user")

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if wait <= 0 {
		wait = 30 * time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var got bool
	if err := conn.QueryRow(lctx, "select pg_try_advisory_lock($1)", lockID).Scan(&got); err != nil {
		return err
	}
	if !got {
		log.Info("migration lock held, waiting", logger.Any("lock_id", lockID))
		if _, err := conn.Exec(lctx, "select pg_advisory_lock($1)", lockID); err != nil {
			return err
		}
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "select pg_advisory_unlock($1)", lockID); err != nil {
			log.Warn("migration lock release failed", logger.Err(err))
		}
	}()
	return fn(ctx)
}

// Migrate aplica los *_up.sql de fsys (orden lexicográfico) que no estén en schema_migrations.
// Retorna cuántos scripts aplicó.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS) (int, error) {
	var applied int
	err := withMigrationLock(ctx, s.pool, 30*time.Second, func(ctx context.Context) error {
		var e error
		applied, e = s.migrate(ctx, fsys)
		return e
	})
	return applied, err
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) (int, error) {
	log := logger.From(ctx).With(logger.Component("store.pg.migrate"))

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	rows, err := s.pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return 0, fmt.Errorf("query applied migrations: %w", err)
	}
	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return 0, err
		}
		done[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	files, err := upScripts(fsys)
	if err != nil {
		return 0, err
	}

	var n int
	for _, f := range files {
		if done[f] {
			continue
		}
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return n, err
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return n, fmt.Errorf("begin tx: %w", err)
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			_ = tx.Rollback(ctx)
			return n, fmt.Errorf("exec %s: %w", f, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", f); err != nil {
			_ = tx.Rollback(ctx)
			return n, fmt.Errorf("record version %s: %w", f, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return n, fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info("migration applied", logger.String("version", f))
		n++
	}
	return n, nil
}

func upScripts(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, path.Clean(e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
