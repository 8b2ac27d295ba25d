package mesh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshstat/meshstat/pkg/model"
)

const envoyClustersJSON = `{
  "cluster_statuses": [
    {
      "name": "web.main",
      "host_statuses": [
        {
          "address": {"socket_address": {"address": "10.0.0.1", "port_value": 8888}},
          "health_status": {"eds_health_status": "HEALTHY"},
          "hostname": "host-a",
          "weight": 1
        },
        {
          "address": {"socket_address": {"address": "10.0.0.2", "port_value": 8888}},
          "health_status": {"eds_health_status": "UNHEALTHY"},
          "hostname": "host-b",
          "weight": 1
        }
      ]
    },
    {
      "name": "web.main.cache",
      "host_statuses": [
        {
          "address": {"socket_address": {"address": "10.0.0.3", "port_value": 8888}},
          "health_status": {"eds_health_status": "HEALTHY"},
          "hostname": "host-c",
          "weight": 1
        }
      ]
    },
    {
      "name": "other.main",
      "host_statuses": [
        {
          "address": {"socket_address": {"address": "10.0.0.9", "port_value": 8888}},
          "health_status": {"eds_health_status": "HEALTHY"},
          "hostname": "host-z",
          "weight": 1
        }
      ]
    }
  ]
}`

func newEnvoyTestSource(t *testing.T, handler http.HandlerFunc) *EnvoySource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEnvoySource(0, srv.URL+"/{endpoint}", 5*time.Second)
}

func TestEnvoyBackends_ParsesClusters(t *testing.T) {
	src := newEnvoyTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clusters", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(envoyClustersJSON))
	})

	backends, err := src.Backends(context.Background(), "web.main", "host-a")
	require.NoError(t, err)
	require.Len(t, backends, 3)

	assert.Equal(t, "10.0.0.1", backends[0].Address)
	assert.Equal(t, int32(8888), backends[0].Port)
	assert.Equal(t, "host-a", backends[0].Hostname)
	assert.Equal(t, model.BackendHealthy, backends[0].Status)
	require.NotNil(t, backends[0].Weight)
	assert.Equal(t, int32(1), *backends[0].Weight)
	assert.False(t, backends[0].ProxiedThroughCache)

	assert.Equal(t, model.BackendUnhealthy, backends[1].Status)

	// The cache cluster's hosts are kept and flagged.
	assert.Equal(t, "10.0.0.3", backends[2].Address)
	assert.True(t, backends[2].ProxiedThroughCache)
}

func TestEnvoyBackends_BadJSON(t *testing.T) {
	src := newEnvoyTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := src.Backends(context.Background(), "web.main", "host-a")
	assert.ErrorContains(t, err, "decoding envoy clusters")
}

func TestClusterServesRegistration(t *testing.T) {
	assert.True(t, clusterServesRegistration("web.main", "web.main"))
	assert.True(t, clusterServesRegistration("web.main.cache", "web.main"))
	assert.False(t, clusterServesRegistration("web.mainline", "web.main"))
	assert.False(t, clusterServesRegistration("other.main", "web.main"))
}

func TestEnvoySort_UnhealthyFirst(t *testing.T) {
	backends := []model.MeshBackend{
		{Address: "a", Status: model.BackendHealthy},
		{Address: "b", Status: model.BackendUnhealthy},
		{Address: "c", Status: model.BackendHealth("DRAINING")},
		{Address: "d", Status: model.BackendDegraded},
	}
	(&EnvoySource{}).Sort(backends)

	order := make([]string, len(backends))
	for i, be := range backends {
		order[i] = be.Address
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, order)
}
