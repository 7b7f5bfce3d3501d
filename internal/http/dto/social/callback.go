// Package social contiene los DTOs del callback federado.
package social

import (
	"time"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// UserDTO es la vista pública del usuario local (sin password).
type UserDTO struct {
	ID         string `json:"id"`
	AppID      string `json:"app_id"`
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture,omitempty"`
	Active     bool   `json:"active"`
}

// CallbackResponse es la respuesta exitosa del callback.
type CallbackResponse struct {
	User         UserDTO   `json:"user"`
	Provider     string    `json:"provider"`
	Created      bool      `json:"created"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FromUser arma el DTO.
func FromUser(u *repository.LocalUser) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{
		ID:         u.ID,
		AppID:      u.AppID,
		Identifier: u.Identifier,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture,
		Active:     u.Active,
	}
}
