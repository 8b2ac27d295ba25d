package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/meshstat/meshstat/internal/batch"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/status"
	"github.com/meshstat/meshstat/pkg/model"
)

type reporterFunc func(ctx context.Context, engine *status.Engine, target batch.Target) batch.Result

func reportInstanceStatus(ctx context.Context, engine *status.Engine, target batch.Target) batch.Result {
	res := batch.Result{Cluster: target.Cluster, Service: target.Service, ExitCode: batch.ExitOK}

	names := make([]string, 0, len(target.Instances))
	for name := range target.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		instanceType, err := status.ParseInstanceType(target.Instances[name])
		if err != nil {
			res.ExitCode = batch.ExitFailed
			res.Output = append(res.Output, err.Error())
			continue
		}
		st, err := engine.InstanceStatus(ctx, status.Request{
			Service:        target.Service,
			Instance:       name,
			Type:           instanceType,
			Verbose:        flagVerbose,
			IncludeHAProxy: flagHAProxy,
			IncludeEnvoy:   flagEnvoy,
			UseV2:          flagUseV2,
		})
		if err != nil {
			res.ExitCode = batch.ExitFailed
			res.Output = append(res.Output, fmt.Sprintf("%s.%s in %s: %v", target.Service, name, target.Cluster, err))
			continue
		}
		res.Output = append(res.Output, renderInstanceStatus(st)...)
	}
	return res
}

func reportMeshStatus(ctx context.Context, engine *status.Engine, target batch.Target) batch.Result {
	res := batch.Result{Cluster: target.Cluster, Service: target.Service, ExitCode: batch.ExitOK}

	names := make([]string, 0, len(target.Instances))
	for name := range target.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		instanceType, err := status.ParseInstanceType(target.Instances[name])
		if err != nil {
			res.ExitCode = batch.ExitFailed
			res.Output = append(res.Output, err.Error())
			continue
		}
		statuses, err := engine.MeshStatus(ctx, status.Request{
			Service:        target.Service,
			Instance:       name,
			Type:           instanceType,
			Verbose:        flagVerbose,
			IncludeHAProxy: true,
			IncludeEnvoy:   true,
		})
		if err != nil {
			res.ExitCode = batch.ExitFailed
			res.Output = append(res.Output, fmt.Sprintf("%s.%s in %s: %v", target.Service, name, target.Cluster, err))
			continue
		}
		res.Output = append(res.Output, fmt.Sprintf("%s.%s in %s:", target.Service, name, target.Cluster))
		for _, flavor := range []mesh.Flavor{mesh.FlavorHAProxy, mesh.FlavorEnvoy} {
			ms, ok := statuses[flavor]
			if !ok {
				continue
			}
			res.Output = append(res.Output, renderMeshStatus(string(flavor), ms)...)
			if ms.Error != "" {
				res.ExitCode = batch.ExitFailed
			}
		}
	}
	return res
}

func renderInstanceStatus(st *model.InstanceStatus) []string {
	lines := []string{fmt.Sprintf("%s.%s in %s:", st.Service, st.Instance, st.Cluster)}

	switch {
	case st.KubernetesV2 != nil:
		lines = append(lines, renderV2(st.KubernetesV2)...)
	case st.Kubernetes != nil:
		lines = append(lines, renderLegacy(st.Kubernetes)...)
	}
	if st.Custom != nil && st.Custom.Status != nil {
		lines = append(lines, fmt.Sprintf("  controller status: %v", st.Custom.Status))
	}
	return lines
}

func renderLegacy(k *model.KubernetesStatus) []string {
	lines := []string{
		fmt.Sprintf("  state: %s, bounce method: %s", k.DesiredState, k.BounceMethod),
		fmt.Sprintf("  instances: %d/%d running (%s)", k.RunningInstanceCount, k.ExpectedInstanceCount, k.DeployStatus),
	}
	if k.DeployStatusMessage != "" {
		lines = append(lines, "  "+k.DeployStatusMessage)
	}
	if k.EvictedCount > 0 {
		lines = append(lines, fmt.Sprintf("  evicted pods: %d", k.EvictedCount))
	}
	if k.ErrorMessage != "" {
		lines = append(lines, "  error: "+k.ErrorMessage)
	}
	for _, pod := range k.Pods {
		lines = append(lines, fmt.Sprintf("    pod %s on %s: %s (ready=%t)", pod.Name, pod.Host, pod.Phase, pod.Ready))
		if pod.Message != "" {
			lines = append(lines, "      "+pod.Message)
		}
	}
	if k.Autoscaling != nil {
		lines = append(lines, renderAutoscaling(k.Autoscaling)...)
	}
	if k.HAProxy != nil {
		lines = append(lines, renderMeshStatus("haproxy", k.HAProxy)...)
	}
	if k.Envoy != nil {
		lines = append(lines, renderMeshStatus("envoy", k.Envoy)...)
	}
	return lines
}

func renderV2(k *model.KubernetesStatusV2) []string {
	lines := []string{
		fmt.Sprintf("  state: %s, desired instances: %d", k.DesiredState, k.DesiredInstances),
	}
	if k.EvictedCount > 0 {
		lines = append(lines, fmt.Sprintf("  evicted pods: %d", k.EvictedCount))
	}
	for _, version := range k.Versions {
		label := version.GitSHA
		if version.ConfigSHA != "" {
			label += ", " + version.ConfigSHA
		}
		lines = append(lines, fmt.Sprintf("  version %s: %d/%d ready", label, version.ReadyReplicas, version.Replicas))
		if flagVerbose > 0 {
			for _, pod := range version.Pods {
				lines = append(lines, fmt.Sprintf("    pod %s on %s: %s (ready=%t)", pod.Name, pod.Host, pod.Phase, pod.Ready))
			}
		}
	}
	if k.Envoy != nil {
		lines = append(lines, renderMeshStatus("envoy", k.Envoy)...)
	}
	return lines
}

func renderAutoscaling(a *model.AutoscalingStatus) []string {
	lines := []string{
		fmt.Sprintf("  autoscaling: %d desired (min %d, max %d), last scale: %s",
			a.DesiredReplicas, a.MinInstances, a.MaxInstances, a.LastScaleTime),
	}
	for _, metric := range a.Metrics {
		lines = append(lines, fmt.Sprintf("    metric %s: current %s, target %s", metric.Name, metric.CurrentValue, metric.TargetValue))
	}
	return lines
}

func renderMeshStatus(flavor string, ms *model.MeshStatus) []string {
	if ms.Error != "" {
		return []string{fmt.Sprintf("  %s: error: %s", flavor, ms.Error)}
	}
	lines := []string{
		fmt.Sprintf("  %s: registration %s, expecting %d backends per location",
			flavor, ms.Registration, ms.ExpectedBackendsPerLocation),
	}
	for _, loc := range ms.Locations {
		lines = append(lines, fmt.Sprintf("    %s: %d running backends", loc.Name, loc.RunningBackendsCount))
		for _, backend := range loc.Backends {
			extra := ""
			if backend.ProxiedThroughCache {
				extra = " (proxied through cache)"
			}
			lines = append(lines, fmt.Sprintf("      %s:%d on %s: %s%s",
				backend.Address, backend.Port, backend.Hostname, backend.Status, extra))
		}
	}
	return lines
}
