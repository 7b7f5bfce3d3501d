package repository

import (
	"context"
	"time"
)

// LocalUser es la cuenta local vinculada a una identidad externa.
// Identifier = providerPrefix + externalID y es único por AppID.
type LocalUser struct {
	ID         string
	AppID      string
	Identifier string
	Email      string
	Name       string
	Picture    string
	Active     bool
	// Password es el hash de un token aleatorio; nunca se usa para logins federados
	// pero el schema local lo exige.
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone devuelve una copia independiente.
func (u *LocalUser) Clone() *LocalUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserRepository es el store de usuarios locales.
type UserRepository interface {
	// GetByIdentifier busca por (appID, identifier).
	// Retorna ErrNotFound si no existe.
	GetByIdentifier(ctx context.Context, appID, identifier string) (*LocalUser, error)

	// Create persiste un usuario nuevo y retorna su ID.
	// Retorna ErrConflict si (appID, identifier) ya existe.
	Create(ctx context.Context, u *LocalUser) (string, error)

	// Update persiste email, name, picture y active del usuario.
	Update(ctx context.Context, u *LocalUser) error

	// Ping verifica la conexión del store (usado por /readyz).
	Ping(ctx context.Context) error
}
