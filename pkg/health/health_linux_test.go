//go:build linux

package health

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shmem/pkg/shm"
)

func TestMonitorTracksHostedRegion(t *testing.T) {
	config := shm.DefaultConfig()
	config.Registerer = prometheus.NewRegistry()
	mgr, err := shm.NewManager(config)
	require.NoError(t, err)

	region, err := mgr.Create(context.Background(), 1, "health-monitor", 128)
	if err != nil {
		t.Skipf("cannot create region: %v", err)
	}
	defer region.Close()

	only := func() []*shm.Region { return []*shm.Region{region} }
	m := NewMonitor(nil, WithRegions(only))

	assert.Equal(t, http.StatusOK, status(t, m.Handler(), LivePath))
	assert.Equal(t, http.StatusServiceUnavailable, status(t, m.Handler(), ReadyPath))
	assert.Error(t, m.ReadinessCheck("health-monitor"))

	region.MarkReady()
	assert.Equal(t, http.StatusOK, status(t, m.Handler(), ReadyPath))
	assert.NoError(t, m.ReadinessCheck("health-monitor"))

	alive, err := m.LivenessCheck("health-monitor")
	require.NoError(t, err)
	assert.True(t, alive)

	// Scribble over the published header the way a misbehaving client would.
	region.Mapping()[48] ^= 0xFF
	alive, err = m.LivenessCheck("health-monitor")
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, http.StatusServiceUnavailable, status(t, m.Handler(), LivePath))
	region.Mapping()[48] ^= 0xFF
}

func TestMonitorDefaultsToHostedRegions(t *testing.T) {
	config := shm.DefaultConfig()
	config.Registerer = prometheus.NewRegistry()
	mgr, err := shm.NewManager(config)
	require.NoError(t, err)

	region, err := mgr.Create(context.Background(), 1, "health-default", 128)
	if err != nil {
		t.Skipf("cannot create region: %v", err)
	}
	m := NewMonitor(nil)
	assert.Error(t, m.ReadinessCheck("health-default"))
	region.MarkReady()
	assert.NoError(t, m.ReadinessCheck("health-default"))

	require.NoError(t, region.Close())
	_, err = m.LivenessCheck("health-default")
	assert.ErrorIs(t, err, ErrUnknownRegion)
}
