package mesh

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/pkg/model"
)

// StatusParams carry everything the builder needs for one mesh status query.
type StatusParams struct {
	Registration  string
	Pool          string
	ExpectedTotal int32
	Nodes         []corev1.Node
	Pods          []model.PodRecord

	// IncludeBackends populates per-backend detail on every location.
	IncludeBackends bool
}

// BuildStatus resolves the instance's locations, queries the mesh admin
// endpoint at one representative host per location, and aggregates
// expected-vs-actual backend counts.
//
// Expected count per location is integer division of the declared total by
// the location count; the per-location sum may be less than the total and is
// not corrected; locations are assumed symmetric in practice.
//
// An unreachable admin endpoint fails the whole mesh status for this flavor;
// the orchestrator contains that failure per flavor.
func BuildStatus(ctx context.Context, source BackendSource, params StatusParams) (*model.MeshStatus, error) {
	locations, err := LocationsForPool(params.Nodes, params.Pool)
	if err != nil {
		return nil, err
	}

	status := &model.MeshStatus{
		Registration:                params.Registration,
		ExpectedBackendsPerLocation: int(params.ExpectedTotal) / len(locations),
		Locations:                   make([]model.MeshLocation, 0, len(locations)),
	}

	for _, loc := range locations {
		backends, err := source.Backends(ctx, params.Registration, loc.RepresentativeHost())
		if err != nil {
			return nil, errors.Wrap(errors.ErrMeshTransport, string(source.Flavor()), err,
				"fetching %s backends for %s in %s", source.Flavor(), params.Registration, loc.Name)
		}

		source.Sort(backends)
		backends = MatchBackendsAndPods(backends, params.Pods)

		status.Locations = append(status.Locations, buildLocation(loc.Name, backends, params.IncludeBackends))
	}
	return status, nil
}

// buildLocation computes the location's running count. The count depends only
// on backend health states, never on list order.
func buildLocation(name string, backends []model.MeshBackend, includeBackends bool) model.MeshLocation {
	running := 0
	for _, be := range backends {
		if be.Status.Healthy() {
			running++
		}
	}

	loc := model.MeshLocation{
		Name:                 name,
		RunningBackendsCount: running,
	}
	if includeBackends {
		loc.Backends = backends
	}
	return loc
}
