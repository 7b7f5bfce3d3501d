package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// UserRepo persiste LocalUser en la tabla local_user.
type UserRepo struct{ pool *pgxpool.Pool }

var _ repository.UserRepository = (*UserRepo)(nil)

const selectUser = `
	SELECT id::text, app_id, identifier, email, name, picture, active, password, created_at, updated_at
	FROM local_user
	WHERE app_id = $1 AND identifier = $2`

func (r *UserRepo) GetByIdentifier(ctx context.Context, appID, identifier string) (*repository.LocalUser, error) {
	var u repository.LocalUser
	err := r.pool.QueryRow(ctx, selectUser, appID, identifier).Scan(
		&u.ID, &u.AppID, &u.Identifier, &u.Email, &u.Name, &u.Picture,
		&u.Active, &u.Password, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg get user: %w", err)
	}
	return &u, nil
}

// Create inserta con ON CONFLICT DO NOTHING: sin fila devuelta => otro request ganó la carrera.
func (r *UserRepo) Create(ctx context.Context, u *repository.LocalUser) (string, error) {
	if u == nil || u.Identifier == "" {
		return "", repository.ErrInvalidInput
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO local_user (app_id, identifier, email, name, picture, active, password)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (app_id, identifier) DO NOTHING
		RETURNING id::text`,
		u.AppID, u.Identifier, u.Email, u.Name, u.Picture, u.Active, u.Password,
	).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return "", repository.ErrConflict
	case err != nil:
		return "", fmt.Errorf("pg create user: %w", err)
	}
	return id, nil
}

func (r *UserRepo) Update(ctx context.Context, u *repository.LocalUser) error {
	if u == nil || u.ID == "" {
		return repository.ErrInvalidInput
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE local_user
		SET email = $2, name = $3, picture = $4, active = $5, updated_at = NOW()
		WHERE id = $1::uuid`,
		u.ID, u.Email, u.Name, u.Picture, u.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }
