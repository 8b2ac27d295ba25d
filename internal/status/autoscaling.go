package status

import (
	"context"
	"fmt"
	"time"

	autoscalingv2 "k8s.io/api/autoscaling/v2"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/pkg/model"
)

// autoscalingStatus reads the instance's horizontal autoscaler into a uniform
// metric record set. An absent autoscaler yields the defined sentinel
// snapshot: not every instance variant has one.
func (e *Engine) autoscalingStatus(ctx context.Context, jc *config.JobConfig) (*model.AutoscalingStatus, error) {
	hpa, err := e.settings.Client.Autoscaler(ctx, jc.Namespace, jc.DeploymentName())
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return model.AutoscalerNotFoundStatus(), nil
		}
		return nil, fmt.Errorf("fetching autoscaler for %s.%s: %w", jc.Service, jc.Instance, err)
	}

	status := &model.AutoscalingStatus{
		MaxInstances:    hpa.Spec.MaxReplicas,
		Metrics:         mergeMetrics(hpa),
		DesiredReplicas: hpa.Status.DesiredReplicas,
		LastScaleTime:   "N/A",
	}
	if hpa.Spec.MinReplicas != nil {
		status.MinInstances = *hpa.Spec.MinReplicas
	}
	if hpa.Status.LastScaleTime != nil {
		status.LastScaleTime = hpa.Status.LastScaleTime.UTC().Format(time.RFC3339)
	}
	return status, nil
}

// mergeMetrics folds target specs and current statuses into one record per
// metric name, target first then current, last write wins per field. A metric
// present in only one source yields a partially-populated record.
func mergeMetrics(hpa *autoscalingv2.HorizontalPodAutoscaler) []model.AutoscalingMetric {
	byName := make(map[string]*model.AutoscalingMetric)
	var order []string

	record := func(name string) *model.AutoscalingMetric {
		if m, ok := byName[name]; ok {
			return m
		}
		m := &model.AutoscalingMetric{Name: name}
		byName[name] = m
		order = append(order, name)
		return m
	}

	for _, spec := range hpa.Spec.Metrics {
		name, target := parseTarget(spec)
		if name == "" {
			continue
		}
		record(name).TargetValue = target
	}

	for _, current := range hpa.Status.CurrentMetrics {
		name, value := parseCurrent(current)
		if name == "" {
			continue
		}
		record(name).CurrentValue = value
	}

	metrics := make([]model.AutoscalingMetric, 0, len(order))
	for _, name := range order {
		metrics = append(metrics, *byName[name])
	}
	return metrics
}

// parseTarget extracts (metric name, target value) from one metric spec.
func parseTarget(spec autoscalingv2.MetricSpec) (string, string) {
	switch spec.Type {
	case autoscalingv2.ResourceMetricSourceType:
		if spec.Resource == nil {
			return "", ""
		}
		return string(spec.Resource.Name), formatTarget(spec.Resource.Target)
	case autoscalingv2.PodsMetricSourceType:
		if spec.Pods == nil {
			return "", ""
		}
		return spec.Pods.Metric.Name, formatTarget(spec.Pods.Target)
	case autoscalingv2.ExternalMetricSourceType:
		if spec.External == nil {
			return "", ""
		}
		return spec.External.Metric.Name, formatTarget(spec.External.Target)
	case autoscalingv2.ObjectMetricSourceType:
		if spec.Object == nil {
			return "", ""
		}
		return spec.Object.Metric.Name, formatTarget(spec.Object.Target)
	default:
		return "", ""
	}
}

// parseCurrent extracts (metric name, current value) from one metric status.
func parseCurrent(current autoscalingv2.MetricStatus) (string, string) {
	switch current.Type {
	case autoscalingv2.ResourceMetricSourceType:
		if current.Resource == nil {
			return "", ""
		}
		return string(current.Resource.Name), formatValue(current.Resource.Current)
	case autoscalingv2.PodsMetricSourceType:
		if current.Pods == nil {
			return "", ""
		}
		return current.Pods.Metric.Name, formatValue(current.Pods.Current)
	case autoscalingv2.ExternalMetricSourceType:
		if current.External == nil {
			return "", ""
		}
		return current.External.Metric.Name, formatValue(current.External.Current)
	case autoscalingv2.ObjectMetricSourceType:
		if current.Object == nil {
			return "", ""
		}
		return current.Object.Metric.Name, formatValue(current.Object.Current)
	default:
		return "", ""
	}
}

func formatTarget(target autoscalingv2.MetricTarget) string {
	switch {
	case target.AverageUtilization != nil:
		return fmt.Sprintf("%d%%", *target.AverageUtilization)
	case target.AverageValue != nil:
		return target.AverageValue.String()
	case target.Value != nil:
		return target.Value.String()
	default:
		return ""
	}
}

func formatValue(value autoscalingv2.MetricValueStatus) string {
	switch {
	case value.AverageUtilization != nil:
		return fmt.Sprintf("%d%%", *value.AverageUtilization)
	case value.AverageValue != nil:
		return value.AverageValue.String()
	case value.Value != nil:
		return value.Value.String()
	default:
		return ""
	}
}
