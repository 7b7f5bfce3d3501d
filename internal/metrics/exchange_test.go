package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/federation/internal/services/social"
)

func TestExchange_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewExchange(reg)
	require.NoError(t, err)

	m.ObserveOutcome("github", "success", 120*time.Millisecond)
	m.ObserveOutcome("github", "success", 80*time.Millisecond)
	m.ObserveOutcome("github", "exchange_error", time.Second)
	m.ObserveStage("github", social.StateTokenExchanged, 10*time.Millisecond, nil)
	m.ObserveStage("github", social.StateProfileFetched, 10*time.Millisecond, errors.New("x"))
	m.UserUpdated([]string{"picture", "email"})
	m.UserUpdated([]string{"picture"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("github", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("github", "exchange_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.userUpdates.WithLabelValues("picture")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration, "federation_exchange_stage_duration_seconds"))
}

func TestNewExchange_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewExchange(reg)
	require.NoError(t, err)
	b, err := NewExchange(reg)
	require.NoError(t, err)

	a.ObserveOutcome("github", "success", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.outcomes.WithLabelValues("github", "success")))
}
