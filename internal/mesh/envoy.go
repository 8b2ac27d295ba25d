package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/meshstat/meshstat/pkg/model"
)

// EnvoySource reads backend state from the Envoy admin interface's clusters
// endpoint.
type EnvoySource struct {
	client    *http.Client
	adminPort int
	urlFormat string // "{host}", "{port}", "{endpoint}" placeholders
}

// NewEnvoySource creates an Envoy backend source.
func NewEnvoySource(adminPort int, urlFormat string, timeout time.Duration) *EnvoySource {
	return &EnvoySource{
		client:    newAdminHTTPClient(timeout),
		adminPort: adminPort,
		urlFormat: urlFormat,
	}
}

// Flavor returns the mesh flavor name.
func (s *EnvoySource) Flavor() Flavor { return FlavorEnvoy }

// clustersPayload is the subset of the admin /clusters JSON the engine reads.
type clustersPayload struct {
	ClusterStatuses []struct {
		Name         string `json:"name"`
		HostStatuses []struct {
			Address struct {
				SocketAddress struct {
					Address   string `json:"address"`
					PortValue int32  `json:"port_value"`
				} `json:"socket_address"`
			} `json:"address"`
			HealthStatus struct {
				EDSHealthStatus string `json:"eds_health_status"`
			} `json:"health_status"`
			Hostname string `json:"hostname"`
			Weight   int32  `json:"weight"`
		} `json:"host_statuses"`
	} `json:"cluster_statuses"`
}

// Backends fetches the clusters dump from the admin endpoint at host and
// returns the hosts of every cluster serving the registration. Clusters with
// a cache suffix are kept and flagged: traffic through them still reaches the
// service.
func (s *EnvoySource) Backends(ctx context.Context, registration, host string) ([]model.MeshBackend, error) {
	url := expandURL(s.urlFormat, host, s.adminPort, "clusters?format=json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building envoy clusters request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching envoy clusters from %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("envoy clusters from %s: unexpected status %d", host, resp.StatusCode)
	}

	var payload clustersPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding envoy clusters from %s: %w", host, err)
	}

	var backends []model.MeshBackend
	for _, cluster := range payload.ClusterStatuses {
		if !clusterServesRegistration(cluster.Name, registration) {
			continue
		}
		proxied := strings.HasSuffix(cluster.Name, ".cache")
		for _, hs := range cluster.HostStatuses {
			weight := hs.Weight
			backends = append(backends, model.MeshBackend{
				Address:             hs.Address.SocketAddress.Address,
				Port:                hs.Address.SocketAddress.PortValue,
				Hostname:            hs.Hostname,
				Status:              model.BackendHealth(hs.HealthStatus.EDSHealthStatus),
				Weight:              &weight,
				ProxiedThroughCache: proxied,
			})
		}
	}
	return backends, nil
}

// clusterServesRegistration matches the registration's own cluster and any
// derived cluster ("<registration>.<suffix>").
func clusterServesRegistration(cluster, registration string) bool {
	return cluster == registration || strings.HasPrefix(cluster, registration+".")
}

// healthOrdinal orders health states unhealthy-first for detail rendering.
// Unknown states sort between known-bad and healthy.
func healthOrdinal(h model.BackendHealth) int {
	switch h {
	case model.BackendUnhealthy:
		return 0
	case model.BackendDegraded:
		return 1
	case model.BackendHealthy:
		return 3
	default:
		return 2
	}
}

// Sort orders backends ascending by health ordinal so unhealthy backends list
// first. Reproduced exactly for golden-output compatibility.
func (s *EnvoySource) Sort(backends []model.MeshBackend) {
	sort.SliceStable(backends, func(i, j int) bool {
		return healthOrdinal(backends[i].Status) < healthOrdinal(backends[j].Status)
	})
}
