package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/federation/internal/domain/repository"
	dto "github.com/dropDatabas3/federation/internal/http/dto/social"
	"github.com/dropDatabas3/federation/internal/jwt"
	svc "github.com/dropDatabas3/federation/internal/services/social"
)

type stubExchange struct {
	res   *svc.Result
	err   error
	calls int
	last  svc.Grant
}

func (s *stubExchange) Exchange(_ context.Context, g svc.Grant) (*svc.Result, error) {
	s.calls++
	s.last = g
	return s.res, s.err
}

type stubSessions struct{ err error }

func (s stubSessions) Issue(sub jwt.Subject) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "tok-" + sub.UserID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func serve(t *testing.T, c *CallbackController, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/auth/{provider}/callback", c.Callback)
	r.Get("/{provider}_auth", c.Callback)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func okResult() *svc.Result {
	u := &repository.LocalUser{ID: "u1", AppID: "root", Identifier: "gh42", Email: "42@github.com", Name: "No Name", Active: true, Password: "hash"}
	return &svc.Result{
		State:     svc.StateDone,
		Created:   true,
		Principal: &svc.Principal{User: u, Provider: "github", Created: true},
	}
}

func TestCallback_Success(t *testing.T) {
	ex := &stubExchange{res: okResult()}
	c := NewCallbackController(ex, stubSessions{}, "https://auth.example.com/")

	rec := serve(t, c, "/auth/GitHub/callback?code=abc&appid=my%20app")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	assert.Equal(t, "github", ex.last.Provider)
	assert.Equal(t, "abc", ex.last.Code)
	assert.Equal(t, "my app", ex.last.AppID)
	assert.Equal(t, "https://auth.example.com/auth/GitHub/callback?appid=my+app", ex.last.RedirectURI)

	var body dto.CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "gh42", body.User.Identifier)
	assert.True(t, body.Created)
	assert.Equal(t, "tok-u1", body.SessionToken)
	assert.NotContains(t, rec.Body.String(), "hash")
}

func TestCallback_LegacyAliasWithoutAppID(t *testing.T) {
	ex := &stubExchange{res: okResult()}
	c := NewCallbackController(ex, stubSessions{}, "http://localhost:8080")
	rec := serve(t, c, "/github_auth?code=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "github", ex.last.Provider)
	assert.Equal(t, "http://localhost:8080/github_auth", ex.last.RedirectURI)
}

func TestCallback_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		res    *svc.Result
		err    error
		status int
	}{
		{"unknown provider", &svc.Result{State: svc.StateIdle}, nil, http.StatusNotFound},
		{"no code", &svc.Result{State: svc.StateFailed, Reason: svc.KindNoAttempt}, nil, http.StatusUnauthorized},
		{"empty profile", &svc.Result{State: svc.StateFailed, Reason: svc.KindEmptyProfile}, nil, http.StatusUnauthorized},
		{"inactive", &svc.Result{State: svc.StateGated}, &svc.Error{Kind: svc.KindAccountInactive, Err: svc.ErrAccountInactive}, http.StatusForbidden},
		{"exchange", &svc.Result{State: svc.StateFailed}, &svc.Error{Kind: svc.KindExchange, Err: errors.New("502")}, http.StatusBadGateway},
		{"provisioning", &svc.Result{State: svc.StateFailed}, &svc.Error{Kind: svc.KindProvisioning, Err: errors.New("db")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCallbackController(&stubExchange{res: tc.res, err: tc.err}, stubSessions{}, "http://h")
			rec := serve(t, c, "/auth/github/callback?code=x")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "session_token")
		})
	}
}

func TestCallback_ProviderErrorParam(t *testing.T) {
	ex := &stubExchange{res: okResult()}
	c := NewCallbackController(ex, stubSessions{}, "http://h")
	rec := serve(t, c, "/auth/github/callback?error=access_denied&error_description=nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "access_denied"))
	assert.Zero(t, ex.calls)
}

func TestCallback_SessionFailure(t *testing.T) {
	c := NewCallbackController(&stubExchange{res: okResult()}, stubSessions{err: errors.New("no key")}, "http://h")
	rec := serve(t, c, "/auth/github/callback?code=x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
