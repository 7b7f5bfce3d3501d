package social

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/federation/internal/domain/repository"
)

// Kind clasifica el resultado fallido de un exchange.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNoAttempt: no vino code; no hubo intento de autenticación.
	KindNoAttempt
	// KindEmptyProfile: el provider no devolvió una identidad utilizable.
	KindEmptyProfile
	// KindExchange: falló el canje del code o una llamada al provider.
	KindExchange
	// KindProvisioning: el store no pudo crear/actualizar el usuario local.
	KindProvisioning
	// KindAccountInactive: el usuario existe pero está deshabilitado.
	KindAccountInactive
)

func (k Kind) String() string {
	switch k {
	case KindNoAttempt:
		return "no_attempt"
	case KindEmptyProfile:
		return "empty_profile"
	case KindExchange:
		return "exchange_error"
	case KindProvisioning:
		return "provisioning_error"
	case KindAccountInactive:
		return "account_inactive"
	default:
		return "unknown"
	}
}

var (
	ErrNoAttempt       = errors.New("social: no authentication attempt")
	ErrEmptyProfile    = errors.New("social: provider returned no usable identity")
	ErrTokenExchange   = errors.New("social: provider exchange failed")
	ErrProvisioning    = errors.New("social: local account provisioning failed")
	ErrAccountInactive = errors.New("social: account disabled")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNoAttempt:
		return ErrNoAttempt
	case KindEmptyProfile:
		return ErrEmptyProfile
	case KindExchange:
		return ErrTokenExchange
	case KindProvisioning:
		return ErrProvisioning
	case KindAccountInactive:
		return ErrAccountInactive
	}
	return nil
}

// Error es el error tipado del exchange. errors.Is(err, ErrXxx) matchea por Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
	// User se completa en KindAccountInactive: la reconciliación sí resolvió la cuenta.
	User *repository.LocalUser
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErrorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extrae el Kind de err (KindUnknown si no es un error del exchange).
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{KindNoAttempt, KindEmptyProfile, KindExchange, KindProvisioning, KindAccountInactive} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// IsBenign indica "no hubo autenticación" sin fallo real (sin code o sin perfil).
func IsBenign(err error) bool {
	k := KindOf(err)
	return k == KindNoAttempt || k == KindEmptyProfile
}
