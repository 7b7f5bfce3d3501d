// Package memory es un UserRepository en memoria para dev y tests.
// Aplica la misma unicidad (app_id, identifier) que el schema de Postgres.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

type key struct{ app, identifier string }

// UserStore guarda copias: los llamadores nunca comparten punteros con el store.
type UserStore struct {
	mu    sync.RWMutex
	users map[key]*repository.LocalUser
	byID  map[string]key
	now   func() time.Time
}

var _ repository.UserRepository = (*UserStore)(nil)

// NewUserStore crea un store vacío.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[key]*repository.LocalUser),
		byID:  make(map[string]key),
		now:   time.Now,
	}
}

func (s *UserStore) GetByIdentifier(ctx context.Context, appID, identifier string) (*repository.LocalUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[key{appID, identifier}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *UserStore) Create(ctx context.Context, u *repository.LocalUser) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if u == nil || strings.TrimSpace(u.Identifier) == "" {
		return "", repository.ErrInvalidInput
	}
	k := key{u.AppID, u.Identifier}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[k]; exists {
		return "", repository.ErrConflict
	}
	c := u.Clone()
	c.ID = uuid.NewString()
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.users[k] = c
	s.byID[c.ID] = k
	return c.ID, nil
}

func (s *UserStore) Update(ctx context.Context, u *repository.LocalUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u == nil {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur := s.users[k]
	cur.Email = u.Email
	cur.Name = u.Name
	cur.Picture = u.Picture
	cur.Active = u.Active
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *UserStore) Ping(ctx context.Context) error { return ctx.Err() }

// SetActive habilita/deshabilita un usuario (admin / tests).
func (s *UserStore) SetActive(appID, identifier string, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[key{appID, identifier}]
	if ok {
		u.Active = active
	}
	return ok
}

// Len retorna la cantidad de usuarios guardados.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
