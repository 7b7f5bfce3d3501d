package social

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dropDatabas3/federation/internal/providers"
)

// DefaultDisplayName se usa cuando el perfil no trae name.
const DefaultDisplayName = "No Name"

// NormalizedIdentity es la identidad externa independiente del provider.
type NormalizedIdentity struct {
	ExternalID     string
	Email          string
	DisplayName    string
	PictureURL     string
	ProviderPrefix string

	// FallbackEmail es el email sintético del provider para ExternalID.
	FallbackEmail string
}

// Identifier es la clave de matching local: prefix + externalID ("gh42").
func (n *NormalizedIdentity) Identifier() string {
	return n.ProviderPrefix + n.ExternalID
}

// EmailFetcher resuelve el email cuando el perfil no lo expone.
type EmailFetcher func(ctx context.Context, externalID string) (string, error)

// Normalize extrae la identidad del perfil crudo. Sin id => (nil, nil).
// Los errores de fetchEmail se propagan sin envolver.
func Normalize(ctx context.Context, raw map[string]any, p providers.Provider, fetchEmail EmailFetcher) (*NormalizedIdentity, error) {
	if raw == nil {
		return nil, nil
	}
	extID, ok := externalID(raw["id"])
	if !ok {
		return nil, nil
	}

	id := &NormalizedIdentity{
		ExternalID:     extID,
		ProviderPrefix: p.Prefix(),
		FallbackEmail:  p.SyntheticEmail(extID),
		DisplayName:    str(raw["name"]),
		PictureURL:     StripQuery(str(raw["avatar_url"])),
		Email:          str(raw["email"]),
	}
	if strings.TrimSpace(id.DisplayName) == "" {
		id.DisplayName = DefaultDisplayName
	}

	if strings.TrimSpace(id.Email) == "" {
		if fetchEmail == nil {
			id.Email = id.FallbackEmail
		} else {
			email, err := fetchEmail(ctx, extID)
			if err != nil {
				return nil, err
			}
			id.Email = email
		}
	}
	return id, nil
}

// StripQuery corta la URL en el primer '?' (parámetros de resize del provider).
func StripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// externalID acepta json.Number, string y números enteros.
func externalID(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case json.Number:
		s = t.String()
	case string:
		s = t
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return "", false
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
