package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/federation/internal/store/memory"
)

func TestOpen_Memory(t *testing.T) {
	for _, d := range []string{"", "memory", " MEM "} {
		s, err := Open(context.Background(), Config{Driver: d})
		require.NoError(t, err, d)
		assert.IsType(t, &memory.UserStore{}, s.Users)
		assert.Nil(t, s.PG)
		s.Close()
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres"})
	assert.ErrorContains(t, err, "DSN")

	_, err = Open(context.Background(), Config{Driver: "mongo"})
	assert.ErrorContains(t, err, "unsupported")
}
