// Package errors define los errores HTTP y su serialización JSON.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/federation/internal/services/social"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe el error como JSON. Errores que no son *AppError => 500.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// FromError convierte cualquier error en *AppError.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if social.KindOf(err) != social.KindUnknown {
		return FromSocial(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// FromSocial mapea el Kind del exchange a la respuesta HTTP.
func FromSocial(err error) *AppError {
	switch social.KindOf(err) {
	case social.KindNoAttempt, social.KindEmptyProfile:
		return ErrUnauthenticated.WithCause(err)
	case social.KindAccountInactive:
		return ErrAccountDisabled.WithCause(err)
	case social.KindExchange:
		return ErrProviderExchange.WithCause(err)
	case social.KindProvisioning:
		return ErrProvisioningFailed.WithCause(err)
	default:
		return ErrInternalServerError.WithCause(err)
	}
}
