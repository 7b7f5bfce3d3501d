// Package jwt emite el token de sesión que entrega el callback federado.
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoSecret     = errors.New("jwt: session secret not configured")
	ErrInvalidToken = errors.New("jwt: invalid session token")
)

// SessionClaims identifica al usuario local autenticado dentro de su app.
type SessionClaims struct {
	AppID      string `json:"aid"`
	Identifier string `json:"idf"`
	Provider   string `json:"amr,omitempty"`
	jwtv5.RegisteredClaims
}

// SessionIssuer firma HS256 con el secret compartido del proceso.
type SessionIssuer struct {
	Iss    string
	TTL    time.Duration
	secret []byte
	now    func() time.Time
}

// NewSessionIssuer exige un secret de al menos 32 bytes.
func NewSessionIssuer(iss string, secret []byte, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt: session secret too short (%d bytes, need 32)", len(secret))
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionIssuer{Iss: strings.TrimRight(iss, "/"), TTL: ttl, secret: secret, now: time.Now}, nil
}

// Subject describe a quién se emite el token.
type Subject struct {
	UserID     string
	AppID      string
	Identifier string
	Provider   string
}

// Issue retorna el token firmado y su expiración.
func (i *SessionIssuer) Issue(s Subject) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.TTL)
	claims := SessionClaims{
		AppID:      s.AppID,
		Identifier: s.Identifier,
		Provider:   s.Provider,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   s.UserID,
			Audience:  jwtv5.ClaimStrings{s.AppID},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse valida firma, issuer y expiración.
func (i *SessionIssuer) Parse(token string) (*SessionClaims, error) {
	var claims SessionClaims
	_, err := jwtv5.ParseWithClaims(token, &claims, func(t *jwtv5.Token) (any, error) {
		return i.secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &claims, nil
}
