package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field         { return zap.String("request_id", v) }
func Method(v string) zap.Field            { return zap.String("method", v) }
func Path(v string) zap.Field              { return zap.String("path", v) }
func Status(v int) zap.Field               { return zap.Int("status", v) }
func Bytes(v int) zap.Field                { return zap.Int("bytes", v) }
func DurationMs(v time.Duration) zap.Field { return zap.Int64("duration_ms", v.Milliseconds()) }

// ---- Sistema ----

// Layer: handler | service | repository.
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// ---- Federación ----

// Provider es el nombre del IdP externo ("github").
func Provider(v string) zap.Field { return zap.String("provider", v) }

// AppID es el tenant que scopea los identifiers.
func AppID(v string) zap.Field { return zap.String("app_id", v) }

// Identifier es prefix+externalID (ej: "gh42").
func Identifier(v string) zap.Field { return zap.String("identifier", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Stage es el estado del exchange en el que se produjo el evento.
func Stage(v string) zap.Field { return zap.String("stage", v) }

func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// EmailMasked loguea el email enmascarado, nunca en claro.
func EmailMasked(v string) zap.Field { return zap.String("email_masked", MaskEmail(v)) }

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }

// MaskEmail deja los 2 primeros caracteres y el dominio: "ab***@x.com".
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
