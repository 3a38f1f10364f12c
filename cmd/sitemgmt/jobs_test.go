package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

func TestNewScheduler(t *testing.T) {
	dir := directory.New(directory.NewMemoryStore())
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewNopLogger()

	c, err := newScheduler("", dir, metrics, logger)
	require.NoError(t, err)
	assert.Nil(t, c, "empty schedule disables the job")

	c, err = newScheduler("@every 1m", dir, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, c, "no metrics means nothing to publish")

	c, err = newScheduler("@every 1m", dir, metrics, logger)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)

	_, err = newScheduler("whenever", dir, metrics, logger)
	assert.Error(t, err)
}

func TestRefreshRoster(t *testing.T) {
	ctx := context.Background()
	dir := directory.New(directory.NewMemoryStore())
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, _, err := dir.CreateOrReactivate(ctx, email)
		require.NoError(t, err)
	}
	_, err := dir.Deactivate(ctx, "a@example.com")
	require.NoError(t, err)

	require.NoError(t, refreshRoster(ctx, dir, metrics))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AdminsGauge.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AdminsGauge.WithLabelValues("inactive")))
}
