// Package mesh resolves how the load-balancing mesh routes traffic to a
// service instance: which locations serve it, which backends the mesh sees in
// each, and how those backends line up with the scheduler's pods.
package mesh

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/meshstat/meshstat/pkg/model"
)

// Flavor names one of the two interchangeable mesh implementations.
type Flavor string

const (
	FlavorHAProxy Flavor = "haproxy"
	FlavorEnvoy   Flavor = "envoy"
)

// BackendSource fetches and orders the raw backend set for one registration
// at one admin host. The two implementations differ only in wire parsing and
// sort order; everything downstream is written once against this interface.
type BackendSource interface {
	Flavor() Flavor

	// Backends queries the mesh admin endpoint at host for the registration's
	// backend set, normalized into MeshBackend records.
	Backends(ctx context.Context, registration, host string) ([]model.MeshBackend, error)

	// Sort orders backends deterministically for rendering. This is a
	// presentation contract, not a load-balancing decision.
	Sort(backends []model.MeshBackend)
}

// newAdminHTTPClient builds the HTTP client used against mesh admin
// endpoints. Failures are surfaced to the caller rather than retried; the
// timeout is the only transport policy applied at this layer.
func newAdminHTTPClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return rc.StandardClient()
}

// MatchBackendsAndPods flags every backend whose address equals a known pod
// address. Unmatched backends stay in the list; unmatched pods simply do not
// count toward any backend.
func MatchBackendsAndPods(backends []model.MeshBackend, pods []model.PodRecord) []model.MeshBackend {
	podAddrs := make(map[string]struct{}, len(pods))
	for _, pod := range pods {
		if pod.IP != "" {
			podAddrs[pod.IP] = struct{}{}
		}
	}

	matched := make([]model.MeshBackend, len(backends))
	for i, be := range backends {
		_, ok := podAddrs[be.Address]
		be.HasAssociatedPod = ok
		matched[i] = be
	}
	return matched
}

// AddressesOf collects the backend addresses of every location into one set.
func AddressesOf(status *model.MeshStatus) map[string]struct{} {
	addrs := make(map[string]struct{})
	if status == nil {
		return addrs
	}
	for _, loc := range status.Locations {
		for _, be := range loc.Backends {
			addrs[be.Address] = struct{}{}
		}
	}
	return addrs
}
