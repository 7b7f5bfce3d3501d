package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/federation/internal/providers"
)

type fakeGitHub struct {
	srv *httptest.Server

	tokenBody   string
	profileBody string
	profileCT   string
	emailsBody  string
	emailsCT    string
	emailsCode  int

	lastForm    string
	lastAuth    string
	profileHits int32
	emailHits   int32
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		tokenBody:  `{"access_token":"tok-1","token_type":"bearer"}`,
		profileCT:  "application/json; charset=utf-8",
		emailsCT:   "application/json",
		emailsCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.lastForm = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.tokenBody)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.profileHits, 1)
		f.lastAuth = r.Header.Get("Authorization")
		if f.profileCT != "" {
			w.Header().Set("Content-Type", f.profileCT)
		}
		_, _ = io.WriteString(w, f.profileBody)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.emailHits, 1)
		if f.emailsCT != "" {
			w.Header().Set("Content-Type", f.emailsCT)
		}
		w.WriteHeader(f.emailsCode)
		_, _ = io.WriteString(w, f.emailsBody)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) provider() *Provider {
	return New(providers.ProviderConfig{
		HTTPClient: f.srv.Client(),
		TokenURL:   f.srv.URL + "/login/oauth/access_token",
		ProfileURL: f.srv.URL + "/user",
	})
}

func TestDefaults(t *testing.T) {
	p := New(providers.ProviderConfig{})
	require.Equal(t, "github", p.Name())
	require.Equal(t, "gh", p.Prefix())
	require.Equal(t, DefaultTokenURL, p.tokenURL)
	require.Equal(t, DefaultProfileURL, p.profileURL)
	require.Equal(t, "https://api.github.com/user/emails", p.emailsURL)
	require.Equal(t, "42@github.com", p.SyntheticEmail("42"))
	require.NotNil(t, p.http)
}

func TestExchangeToken_FormOrderAndEncoding(t *testing.T) {
	f := newFakeGitHub(t)
	p := f.provider()

	tok, err := p.ExchangeToken(context.Background(), "a b&c", "http://h/cb?appid=app 1",
		providers.Credentials{ClientID: "cid", ClientSecret: "s&cret"})
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)

	want := "code=a+b%26c" +
		"&redirect_uri=http%3A%2F%2Fh%2Fcb%3Fappid%3Dapp+1" +
		"&scope=" +
		"&client_id=cid" +
		"&client_secret=s%26cret" +
		"&grant_type=authorization_code"
	require.Equal(t, want, f.lastForm)
}

func TestExchangeToken_Failures(t *testing.T) {
	cases := map[string]string{
		"no access_token": `{"token_type":"bearer"}`,
		"blank token":     `{"access_token":"  "}`,
		"oauth error":     `{"error":"bad_verification_code","error_description":"expired"}`,
		"invalid json":    `not json`,
		"empty body":      ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFakeGitHub(t)
			f.tokenBody = body
			_, err := f.provider().ExchangeToken(context.Background(), "c", "r", providers.Credentials{})
			require.Error(t, err)
			require.True(t, errors.Is(err, providers.ErrTokenExchange))
		})
	}
}

func TestFetchProfile(t *testing.T) {
	f := newFakeGitHub(t)
	f.profileBody = `{"id":42,"login":"octo","name":"Octo Cat"}`
	p := f.provider()

	prof, err := p.FetchProfile(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-1", f.lastAuth)
	require.Equal(t, json.Number("42"), prof["id"])
	require.Equal(t, "octo", prof["login"])
}

func TestFetchProfile_NoIdentity(t *testing.T) {
	t.Run("non json content type", func(t *testing.T) {
		f := newFakeGitHub(t)
		f.profileCT = "text/html"
		f.profileBody = "<html></html>"
		prof, err := f.provider().FetchProfile(context.Background(), "t")
		require.NoError(t, err)
		require.Nil(t, prof)
	})
	t.Run("empty body", func(t *testing.T) {
		f := newFakeGitHub(t)
		prof, err := f.provider().FetchProfile(context.Background(), "t")
		require.NoError(t, err)
		require.Nil(t, prof)
	})
	t.Run("invalid json is an error", func(t *testing.T) {
		f := newFakeGitHub(t)
		f.profileBody = "{broken"
		_, err := f.provider().FetchProfile(context.Background(), "t")
		require.ErrorIs(t, err, providers.ErrProfileFetch)
	})
}

func TestFetchVerifiedEmail(t *testing.T) {
	cases := []struct {
		name string
		body string
		ct   string
		code int
		want string
	}{
		{"primary wins", `[{"email":"a@x"},{"email":"b@x","primary":true},{"email":"c@x"}]`, "application/json", 200, "b@x"},
		{"last seen without primary", `[{"email":"a@x"},{"email":"c@x"}]`, "application/json", 200, "c@x"},
		{"concatenated objects", `{"email":"a@x"} {"email":"b@x","primary":true}`, "application/json", 200, "b@x"},
		{"empty array", `[]`, "application/json", 200, "42@github.com"},
		{"non json", `nope`, "text/plain", 200, "42@github.com"},
		{"non 2xx", `{"message":"forbidden"}`, "application/json", 403, "42@github.com"},
		{"blank email", `[{"email":"","primary":true}]`, "application/json", 200, "42@github.com"},
		{"non object elements skipped", `["x",{"email":"ok@x"}]`, "application/json", 200, "ok@x"},
		{"vendor json type", `[{"email":"v@x","primary":true}]`, "application/vnd.github+json", 200, "v@x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeGitHub(t)
			f.emailsBody = tc.body
			f.emailsCT = tc.ct
			f.emailsCode = tc.code
			got, err := f.provider().FetchVerifiedEmail(context.Background(), "42", "t")
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFetchVerifiedEmail_TransportError(t *testing.T) {
	f := newFakeGitHub(t)
	p := f.provider()
	f.srv.Close()
	_, err := p.FetchVerifiedEmail(context.Background(), "42", "t")
	require.ErrorIs(t, err, providers.ErrEmailFetch)
}

func TestSelectEmail_StopsAtPrimary(t *testing.T) {
	// el resto del stream está roto: si no corta en primary, falla el decode
	seq := newEmailSeq(strings.NewReader(`[{"email":"p@x","primary":true}, {broken`))
	got, err := selectEmail(seq)
	require.NoError(t, err)
	require.Equal(t, "p@x", got)
}

func TestIsJSONType(t *testing.T) {
	require.True(t, isJSONType("application/json"))
	require.True(t, isJSONType("application/json; charset=utf-8"))
	require.True(t, isJSONType("application/problem+json"))
	require.False(t, isJSONType(""))
	require.False(t, isJSONType("text/html"))
}
