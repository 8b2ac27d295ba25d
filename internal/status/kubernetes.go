package status

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/convert"
	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/version"
	"github.com/meshstat/meshstat/pkg/model"
)

// kubernetesStatus builds the legacy per-pod/per-replicaset snapshot shape.
func (e *Engine) kubernetesStatus(ctx context.Context, req Request) (*model.KubernetesStatus, error) {
	jc, err := e.loadJobConfig(req)
	if err != nil {
		return nil, err
	}
	client := e.settings.Client

	rawApp, err := client.AppByName(ctx, jc.Namespace, jc.DeploymentName())
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
			"fetching app for %s.%s", req.Service, req.Instance)
	}
	app := convert.DeploymentToApp(rawApp)

	rawPods, err := client.PodsForServiceInstance(ctx, jc.Namespace, req.Service, req.Instance)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
			"listing pods for %s.%s", req.Service, req.Instance)
	}
	pods := convertPods(rawPods)

	rawReplicaSets, err := client.ReplicaSetsForServiceInstance(ctx, jc.Namespace, req.Service, req.Instance)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
			"listing replicasets for %s.%s", req.Service, req.Instance)
	}
	groups := make([]model.ReplicaGroup, 0, len(rawReplicaSets))
	for i := range rawReplicaSets {
		groups = append(groups, convert.ReplicaSetToGroup(&rawReplicaSets[i]))
	}

	// Bouncing is inferred from the number of distinct active versions;
	// 0/0 replica groups are garbage and do not count.
	activeGroups := version.FilterActive(groups)
	activeShas := version.ActiveIdentities(&app, pods, activeGroups)

	deployStatus, deployMessage := classifyDeployStatus(app, jc.DesiredInstances())

	kstatus := &model.KubernetesStatus{
		AppID:        jc.DeploymentName(),
		AppCount:     len(activeShas),
		ActiveShas:   activeShas,
		DesiredState: jc.DesiredState,
		BounceMethod: jc.BounceMethod,

		ExpectedInstanceCount: jc.Instances,
		RunningInstanceCount:  app.ReadyReplicas,
		DeployStatus:          deployStatus,
		DeployStatusMessage:   deployMessage,
		CreateTimestamp:       app.CreateTimestamp,
		Namespace:             app.Namespace,

		Pods:        []model.PodDetail{},
		ReplicaSets: activeGroups,

		EvictedCount: countEvicted(rawPods),
	}

	if req.Verbose > 0 {
		kstatus.Pods = e.podDetails(ctx, rawPods, tailLinesFor(req.Verbose))
	}

	// Autoscaling is non-critical telemetry: fetch failures become a
	// best-effort message on the snapshot, never an abort.
	if jc.AutoscalingEnabled() && jc.DecisionPolicy() != "bespoke" {
		autoscaling, err := e.autoscalingStatus(ctx, jc)
		if err != nil {
			kstatus.ErrorMessage = fmt.Sprintf(
				"Unknown error occurred while fetching autoscaling status: %v", err)
		} else {
			kstatus.Autoscaling = autoscaling
		}
	}

	if req.IncludeHAProxy || req.IncludeEnvoy {
		e.attachMeshStatuses(ctx, req, jc, pods, kstatus)
	}

	return kstatus, nil
}

// attachMeshStatuses merges mesh state into the legacy snapshot. A mesh
// flavor's transport failure downgrades that flavor to an error message; the
// snapshot itself stays valid.
func (e *Engine) attachMeshStatuses(ctx context.Context, req Request, jc *config.JobConfig, pods []model.PodRecord, kstatus *model.KubernetesStatus) {
	nsConfig, err := config.LoadNamespaceConfig(e.settings.SOADir, req.Service, jc.RegistrationNamespace())
	if err != nil || !nsConfig.InMesh() {
		return
	}

	nodes, err := e.settings.Client.Nodes(ctx)
	if err != nil {
		e.log.Warn("listing nodes for mesh status failed", "service", req.Service, "error", err)
		return
	}

	params := mesh.StatusParams{
		Registration:    jc.Registration(),
		Pool:            jc.Pool,
		ExpectedTotal:   jc.Instances,
		Nodes:           nodes,
		Pods:            pods,
		IncludeBackends: req.Verbose > 0,
	}

	if req.IncludeHAProxy {
		kstatus.HAProxy = e.containedMeshStatus(ctx, e.settings.HAProxy, params)
	}
	if req.IncludeEnvoy {
		kstatus.Envoy = e.containedMeshStatus(ctx, e.settings.Envoy, params)
	}
}

// containedMeshStatus converts a mesh flavor's failure into an error-carrying
// status value.
func (e *Engine) containedMeshStatus(ctx context.Context, source mesh.BackendSource, params mesh.StatusParams) *model.MeshStatus {
	st, err := e.buildMeshStatus(ctx, source, params)
	if err != nil {
		return &model.MeshStatus{Registration: params.Registration, Error: err.Error()}
	}
	return st
}

// podDetails fetches verbose detail for every pod concurrently: one sub-fetch
// per pod for log tails and events, joined before returning. Order follows
// the input pod list.
func (e *Engine) podDetails(ctx context.Context, pods []corev1.Pod, tailLines int64) []model.PodDetail {
	details := make([]model.PodDetail, len(pods))

	var wg sync.WaitGroup
	for i := range pods {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			details[i] = e.podDetail(ctx, &pods[i], tailLines)
		}(i)
	}
	wg.Wait()

	return details
}

func (e *Engine) podDetail(ctx context.Context, pod *corev1.Pod, tailLines int64) model.PodDetail {
	detail := model.PodDetail{
		Name:              pod.Name,
		Host:              pod.Status.HostIP,
		DeployedTimestamp: pod.CreationTimestamp.Unix(),
		Phase:             string(pod.Status.Phase),
		Ready:             convert.IsPodReady(pod),
		Reason:            pod.Status.Reason,
		Message:           pod.Status.Message,
		GitSHA:            pod.Labels[convert.LabelGitSHA],
		ConfigSHA:         pod.Labels[convert.LabelConfigSHA],
	}

	events, err := e.settings.Client.EventMessagesForPod(ctx, pod)
	if err != nil {
		e.log.Warn("fetching pod events failed", "pod", pod.Name, "error", err)
	}
	if events == nil {
		events = []string{}
	}
	detail.Events = events

	for _, cs := range pod.Status.ContainerStatuses {
		logs := model.ContainerLogs{Name: cs.Name}
		lines, err := e.settings.Client.TailLines(ctx, pod, cs.Name, tailLines)
		if err != nil {
			logs.Error = err.Error()
		} else {
			logs.TailLines = lines
		}
		detail.Containers = append(detail.Containers, logs)
	}

	return detail
}

// tailLinesFor maps the verbosity count to a number of log lines.
func tailLinesFor(verbose int) int64 {
	switch {
	case verbose <= 1:
		return 10
	case verbose == 2:
		return 50
	default:
		return 100
	}
}

// classifyDeployStatus compares the app object against the desired instance
// count.
func classifyDeployStatus(app model.AppRecord, desired int32) (string, string) {
	switch {
	case desired == 0:
		return "Stopped", fmt.Sprintf("%d replicas running (desired: 0)", app.ReadyReplicas)
	case app.ReadyReplicas < desired:
		return "Waiting", fmt.Sprintf("%d/%d replicas ready", app.ReadyReplicas, desired)
	case app.UpdatedReplicas < desired:
		return "Deploying", fmt.Sprintf("%d/%d replicas updated", app.UpdatedReplicas, desired)
	default:
		return "Running", fmt.Sprintf("%d/%d replicas ready", app.ReadyReplicas, desired)
	}
}

func countEvicted(pods []corev1.Pod) int {
	evicted := 0
	for i := range pods {
		if pods[i].Status.Reason == "Evicted" {
			evicted++
		}
	}
	return evicted
}

func convertPods(pods []corev1.Pod) []model.PodRecord {
	records := make([]model.PodRecord, 0, len(pods))
	for i := range pods {
		records = append(records, convert.PodToRecord(&pods[i]))
	}
	return records
}
