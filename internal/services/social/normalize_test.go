package social

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "https://x/pic.png", StripQuery("https://x/pic.png?size=200"))
	assert.Equal(t, "https://x/pic.png", StripQuery("https://x/pic.png"))
	assert.Equal(t, "https://x/a", StripQuery("https://x/a?b=1?c=2"))
	assert.Equal(t, "", StripQuery(""))
}

func TestNormalize_NoID(t *testing.T) {
	p := &fakeProvider{}
	for _, raw := range []map[string]any{
		nil,
		{},
		{"id": nil},
		{"id": "  "},
		{"id": 1.5},
		{"id": true},
	} {
		id, err := Normalize(context.Background(), raw, p, nil)
		require.NoError(t, err)
		assert.Nil(t, id, "raw=%v", raw)
	}
}

func TestNormalize_IDForms(t *testing.T) {
	p := &fakeProvider{}
	cases := map[string]any{
		"42":  json.Number("42"),
		"43":  "43",
		"44":  float64(44),
		"45":  45,
		"abc": "abc",
	}
	for want, v := range cases {
		id, err := Normalize(context.Background(), map[string]any{"id": v, "email": "e@x"}, p, nil)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, want, id.ExternalID)
		assert.Equal(t, "fk"+want, id.Identifier())
	}
}

func TestNormalize_Fields(t *testing.T) {
	p := &fakeProvider{}
	raw := map[string]any{
		"id":         json.Number("7"),
		"name":       "Octo",
		"email":      "octo@x.com",
		"avatar_url": "https://p/x.jpg?s=1",
	}
	var fetched bool
	id, err := Normalize(context.Background(), raw, p, func(context.Context, string) (string, error) {
		fetched = true
		return "other@x", nil
	})
	require.NoError(t, err)
	assert.False(t, fetched, "public email must be used verbatim")
	assert.Equal(t, "octo@x.com", id.Email)
	assert.Equal(t, "Octo", id.DisplayName)
	assert.Equal(t, "https://p/x.jpg", id.PictureURL)
	assert.Equal(t, "fk", id.ProviderPrefix)
	assert.Equal(t, "7@fake.test", id.FallbackEmail)
}

func TestNormalize_EmailFallbacks(t *testing.T) {
	p := &fakeProvider{}

	id, err := Normalize(context.Background(), map[string]any{"id": "9", "email": " "}, p,
		func(_ context.Context, ext string) (string, error) { return "primary@x", nil })
	require.NoError(t, err)
	assert.Equal(t, "primary@x", id.Email)
	assert.Equal(t, DefaultDisplayName, id.DisplayName)
	assert.Equal(t, "", id.PictureURL)

	id, err = Normalize(context.Background(), map[string]any{"id": "9"}, p, nil)
	require.NoError(t, err)
	assert.Equal(t, "9@fake.test", id.Email)
}

func TestNormalize_FetcherErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	_, err := Normalize(context.Background(), map[string]any{"id": "9"}, &fakeProvider{},
		func(context.Context, string) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
}
