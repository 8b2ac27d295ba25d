// Package status builds the per-instance status snapshot: it dispatches on
// the instance flavor, runs the scheduler/mesh/autoscaling sub-fetches, and
// merges the results. Sub-results are merged deterministically; nothing is
// mutated after the snapshot is returned.
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/internal/fetch"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/observability"
	"github.com/meshstat/meshstat/pkg/model"
)

// Settings bundle the per-cluster collaborators the engine queries.
type Settings struct {
	Cluster string
	SOADir  string
	Client  *fetch.Client

	HAProxy mesh.BackendSource
	Envoy   mesh.BackendSource
}

// Request selects one instance status query.
type Request struct {
	Service  string
	Instance string
	Type     InstanceType

	// Verbose gates per-pod and per-backend detail. 0 disables detail,
	// higher values tail more log lines.
	Verbose int

	// IncludeHAProxy / IncludeEnvoy gate mesh status output. Mesh-based
	// readiness correction in the versioned shape is independent of both.
	IncludeHAProxy bool
	IncludeEnvoy   bool

	// UseV2 selects the versioned snapshot shape instead of the legacy one.
	UseV2 bool
}

// Engine is the instance status orchestrator for one cluster.
type Engine struct {
	settings Settings
	metrics  *observability.Metrics
	log      *slog.Logger
}

// NewEngine creates a status engine.
func NewEngine(settings Settings, metrics *observability.Metrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{settings: settings, metrics: metrics, log: log}
}

// InstanceStatus builds the full snapshot for one instance. Flavors that are
// both scheduler-native and controller-managed get both sub-statuses,
// fetched independently.
//
// Scheduler fetch errors abort the snapshot: scheduler state is load-bearing.
// Mesh and autoscaling failures are contained and surfaced as data.
func (e *Engine) InstanceStatus(ctx context.Context, req Request) (*model.InstanceStatus, error) {
	started := time.Now()
	shape := "legacy"
	if req.UseV2 {
		shape = "v2"
	}

	status := &model.InstanceStatus{
		Service:  req.Service,
		Instance: req.Instance,
		Cluster:  e.settings.Cluster,
	}

	caps := req.Type.Capabilities()

	if caps.CustomResource {
		custom, err := e.customStatus(ctx, req)
		if err != nil {
			e.observeStatus(shape, started, err)
			return nil, err
		}
		status.Custom = custom
	}

	if caps.Kubernetes {
		if req.UseV2 {
			v2, err := e.kubernetesStatusV2(ctx, req)
			if err != nil {
				e.observeStatus(shape, started, err)
				return nil, err
			}
			status.KubernetesV2 = v2
		} else {
			legacy, err := e.kubernetesStatus(ctx, req)
			if err != nil {
				e.observeStatus(shape, started, err)
				return nil, err
			}
			status.Kubernetes = legacy
		}
	}

	e.observeStatus(shape, started, nil)
	return status, nil
}

func (e *Engine) observeStatus(shape string, started time.Time, err error) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.metrics.StatusRequestsTotal.WithLabelValues(shape, result).Inc()
	e.metrics.StatusDuration.WithLabelValues(shape).Observe(time.Since(started).Seconds())
}

// MeshStatus builds the standalone mesh view of an instance, per flavor.
// An instance whose namespace declares no proxy port is not configured for
// the mesh; that is a typed error so callers can distinguish it from
// transport failures.
func (e *Engine) MeshStatus(ctx context.Context, req Request) (map[mesh.Flavor]*model.MeshStatus, error) {
	if !req.IncludeHAProxy && !req.IncludeEnvoy {
		return map[mesh.Flavor]*model.MeshStatus{}, nil
	}

	jc, err := e.loadJobConfig(req)
	if err != nil {
		return nil, err
	}

	nsConfig, err := config.LoadNamespaceConfig(e.settings.SOADir, req.Service, jc.RegistrationNamespace())
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigLoad, "mesh", err, "loading namespace config for %s", req.Service)
	}
	if !nsConfig.InMesh() {
		return nil, errors.New(errors.ErrMeshNotConfigured, "mesh",
			"%s.%s is not configured for the mesh", req.Service, req.Instance)
	}

	rawPods, err := e.settings.Client.PodsForServiceInstance(ctx, jc.Namespace, req.Service, req.Instance)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "mesh", err, "listing pods for %s.%s", req.Service, req.Instance)
	}
	pods := convertPods(rawPods)

	nodes, err := e.settings.Client.Nodes(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "mesh", err, "listing nodes")
	}

	params := mesh.StatusParams{
		Registration:    jc.Registration(),
		Pool:            jc.Pool,
		ExpectedTotal:   jc.Instances,
		Nodes:           nodes,
		Pods:            pods,
		IncludeBackends: req.Verbose > 0,
	}

	out := make(map[mesh.Flavor]*model.MeshStatus, 2)
	if req.IncludeHAProxy {
		st, err := e.buildMeshStatus(ctx, e.settings.HAProxy, params)
		if err != nil {
			return nil, err
		}
		out[mesh.FlavorHAProxy] = st
	}
	if req.IncludeEnvoy {
		st, err := e.buildMeshStatus(ctx, e.settings.Envoy, params)
		if err != nil {
			return nil, err
		}
		out[mesh.FlavorEnvoy] = st
	}
	return out, nil
}

// buildMeshStatus wraps mesh.BuildStatus with timing and error metrics.
func (e *Engine) buildMeshStatus(ctx context.Context, source mesh.BackendSource, params mesh.StatusParams) (*model.MeshStatus, error) {
	started := time.Now()
	st, err := mesh.BuildStatus(ctx, source, params)
	if e.metrics != nil {
		e.metrics.MeshFetchDuration.WithLabelValues(string(source.Flavor())).Observe(time.Since(started).Seconds())
		if err != nil {
			e.metrics.MeshFetchErrors.WithLabelValues(string(source.Flavor())).Inc()
		}
	}
	return st, err
}

// SetDesiredState runs the desired-state transition for flavors whose
// capability set allows it.
func (e *Engine) SetDesiredState(ctx context.Context, req Request, state string) error {
	if !req.Type.Capabilities().SetState {
		return errors.New(errors.ErrSetStateUnsupported, "status",
			"instance type %q does not support desired-state transitions", req.Type)
	}

	jc, err := e.loadJobConfig(req)
	if err != nil {
		return err
	}

	id := req.Type.CustomResourceID(req.Service, req.Instance, jc)
	if err := e.settings.Client.SetCustomResourceDesiredState(ctx, id, state); err != nil {
		return errors.Wrap(errors.ErrSetStateFailed, "status", err,
			"setting state %q of %s.%s", state, req.Service, req.Instance)
	}
	e.log.Info("desired state set", "service", req.Service, "instance", req.Instance, "state", state)
	return nil
}

func (e *Engine) loadJobConfig(req Request) (*config.JobConfig, error) {
	jc, err := config.LoadJobConfig(e.settings.SOADir, req.Service, req.Instance, e.settings.Cluster, req.Type.ConfigPrefix())
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigLoad, "status", err,
			"loading config for %s.%s on %s", req.Service, req.Instance, e.settings.Cluster)
	}
	return jc, nil
}
