package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/federation/internal/domain/repository"
	"github.com/dropDatabas3/federation/internal/security/secretbox"
)

func testBox(t *testing.T) *secretbox.Box {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(200 - i)
	}
	b, err := secretbox.New(key)
	require.NoError(t, err)
	return b
}

func TestPutGet_RoundTripEncryptsSecrets(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(dir, testBox(t))

	err := p.PutApp(ctx, &repository.App{
		ID:    "root",
		Name:  "Root",
		OAuth: map[string]repository.Credentials{"gh": {ClientID: "cid", ClientSecret: "top-secret"}},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "apps", "root.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "top-secret")
	assert.Contains(t, string(raw), "clientSecretEnc")

	app, err := p.GetApp(ctx, "root")
	require.NoError(t, err)
	c, ok := app.OAuthCredentials("gh")
	require.True(t, ok)
	assert.Equal(t, "cid", c.ClientID)
	assert.Equal(t, "top-secret", c.ClientSecret)

	ids, err := p.ListApps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, ids)
}

func TestGetApp_PlainSecretForDev(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "apps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps", "dev.yaml"), []byte(`
id: dev
oauth:
  gh:
    clientId: dev-id
    clientSecret: dev-secret
`), 0o600))

	app, err := New(dir, nil).GetApp(context.Background(), "dev")
	require.NoError(t, err)
	c, ok := app.OAuthCredentials("gh")
	require.True(t, ok)
	assert.Equal(t, "dev-secret", c.ClientSecret)
}

func TestGetApp_NotFoundAndInvalid(t *testing.T) {
	p := New(t.TempDir(), nil)
	for _, id := range []string{"missing", "../etc/passwd", "", "a/b"} {
		_, err := p.GetApp(context.Background(), id)
		assert.ErrorIs(t, err, repository.ErrNotFound, id)
	}
}

func TestGetApp_EncryptedWithoutKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New(dir, testBox(t)).PutApp(context.Background(), &repository.App{
		ID: "x", OAuth: map[string]repository.Credentials{"gh": {ClientID: "a", ClientSecret: "b"}},
	}))
	_, err := New(dir, nil).GetApp(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}
