package status

import (
	"context"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/convert"
	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/version"
	"github.com/meshstat/meshstat/pkg/model"
)

// kubernetesStatusV2 builds the versioned, bounce-aware snapshot shape.
//
// Whenever the instance is mesh-facing, the envoy backend set is fetched even
// if the caller did not ask for mesh output: pod readiness in this shape is
// always corrected against mesh membership when mesh information exists.
func (e *Engine) kubernetesStatusV2(ctx context.Context, req Request) (*model.KubernetesStatusV2, error) {
	jc, err := e.loadJobConfig(req)
	if err != nil {
		return nil, err
	}
	client := e.settings.Client

	status := &model.KubernetesStatusV2{
		AppName:          jc.DeploymentName(),
		DesiredState:     jc.DesiredState,
		DesiredInstances: jc.DesiredInstances(),
		BounceMethod:     jc.BounceMethod,
	}

	rawPods, err := client.PodsForServiceInstance(ctx, jc.Namespace, req.Service, req.Instance)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
			"listing pods for %s.%s", req.Service, req.Instance)
	}
	pods := convertPods(rawPods)
	status.EvictedCount = countEvicted(rawPods)

	backends := e.meshBackendSet(ctx, req, jc, pods, status)

	if len(jc.PersistentVolumes) > 0 {
		rawRevisions, err := client.ControllerRevisionsForServiceInstance(ctx, jc.Namespace, req.Service, req.Instance)
		if err != nil {
			return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
				"listing controller revisions for %s.%s", req.Service, req.Instance)
		}
		groups := make([]model.ReplicaGroup, 0, len(rawRevisions))
		for i := range rawRevisions {
			groups = append(groups, convert.ControllerRevisionToGroup(&rawRevisions[i]))
		}
		status.Versions = version.ForControllerRevisions(groups, pods, backends)
	} else {
		rawReplicaSets, err := client.ReplicaSetsForServiceInstance(ctx, jc.Namespace, req.Service, req.Instance)
		if err != nil {
			return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
				"listing replicasets for %s.%s", req.Service, req.Instance)
		}
		groups := make([]model.ReplicaGroup, 0, len(rawReplicaSets))
		for i := range rawReplicaSets {
			groups = append(groups, convert.ReplicaSetToGroup(&rawReplicaSets[i]))
		}
		status.Versions = version.ForReplicaSets(groups, pods, backends)
	}

	return status, nil
}

// meshBackendSet fetches the envoy view of the instance when it is
// mesh-facing, attaches it to the snapshot if envoy output was requested, and
// returns the backend address set for the readiness override. A nil return
// means mesh membership is unknown and readiness stays as the scheduler
// reported it.
func (e *Engine) meshBackendSet(ctx context.Context, req Request, jc *config.JobConfig, pods []model.PodRecord, status *model.KubernetesStatusV2) version.AddressSet {
	nsConfig, err := config.LoadNamespaceConfig(e.settings.SOADir, req.Service, jc.RegistrationNamespace())
	if err != nil {
		e.log.Warn("loading namespace config failed", "service", req.Service, "error", err)
		return nil
	}
	if !nsConfig.InMesh() {
		return nil
	}

	nodes, err := e.settings.Client.Nodes(ctx)
	if err != nil {
		e.log.Warn("listing nodes for mesh status failed", "service", req.Service, "error", err)
		return nil
	}

	params := mesh.StatusParams{
		Registration:  jc.Registration(),
		Pool:          jc.Pool,
		ExpectedTotal: jc.Instances,
		Nodes:         nodes,
		Pods:          pods,
		// Backends are always needed here: the readiness override consumes
		// them even when the caller did not request mesh output.
		IncludeBackends: true,
	}

	envoyStatus, err := e.buildMeshStatus(ctx, e.settings.Envoy, params)
	if err != nil {
		if req.IncludeEnvoy {
			status.Envoy = &model.MeshStatus{Registration: params.Registration, Error: err.Error()}
		}
		return nil
	}

	if req.IncludeEnvoy {
		status.Envoy = envoyStatus
	}
	return version.AddressSet(mesh.AddressesOf(envoyStatus))
}
