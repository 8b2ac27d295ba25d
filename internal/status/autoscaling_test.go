package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/pkg/model"
)

func testJobConfig() *config.JobConfig {
	return &config.JobConfig{
		Service:   testService,
		Instance:  testInstance,
		Namespace: testNamespace,
	}
}

func TestAutoscalingStatus_AbsentAutoscalerSentinel(t *testing.T) {
	env := newTestEnv(t)

	status, err := env.engine.autoscalingStatus(env.ctx, testJobConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(-1), status.MinInstances)
	assert.Equal(t, int32(-1), status.MaxInstances)
	assert.Equal(t, int32(-1), status.DesiredReplicas)
	assert.NotNil(t, status.Metrics)
	assert.Empty(t, status.Metrics)
	assert.Equal(t, model.LastScaleTimeUnknown, status.LastScaleTime)
}

func TestAutoscalingStatus_PopulatedAutoscaler(t *testing.T) {
	scaled := metav1.NewTime(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	hpa := &autoscalingv2.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{Name: "web-main", Namespace: testNamespace},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			MinReplicas: ptr.To(int32(2)),
			MaxReplicas: 10,
			Metrics: []autoscalingv2.MetricSpec{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricSource{
						Name: corev1.ResourceCPU,
						Target: autoscalingv2.MetricTarget{
							AverageUtilization: ptr.To(int32(50)),
						},
					},
				},
			},
		},
		Status: autoscalingv2.HorizontalPodAutoscalerStatus{
			DesiredReplicas: 4,
			LastScaleTime:   &scaled,
			CurrentMetrics: []autoscalingv2.MetricStatus{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricStatus{
						Name: corev1.ResourceCPU,
						Current: autoscalingv2.MetricValueStatus{
							AverageUtilization: ptr.To(int32(72)),
						},
					},
				},
			},
		},
	}
	env := newTestEnv(t, hpa)

	status, err := env.engine.autoscalingStatus(env.ctx, testJobConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(2), status.MinInstances)
	assert.Equal(t, int32(10), status.MaxInstances)
	assert.Equal(t, int32(4), status.DesiredReplicas)
	assert.Equal(t, "2026-03-14T12:00:00Z", status.LastScaleTime)

	require.Len(t, status.Metrics, 1)
	assert.Equal(t, "cpu", status.Metrics[0].Name)
	assert.Equal(t, "50%", status.Metrics[0].TargetValue)
	assert.Equal(t, "72%", status.Metrics[0].CurrentValue)
}

func TestAutoscalingStatus_NoLastScaleTime(t *testing.T) {
	hpa := &autoscalingv2.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{Name: "web-main", Namespace: testNamespace},
		Spec:       autoscalingv2.HorizontalPodAutoscalerSpec{MaxReplicas: 5},
	}
	env := newTestEnv(t, hpa)

	status, err := env.engine.autoscalingStatus(env.ctx, testJobConfig())
	require.NoError(t, err)
	assert.Equal(t, "N/A", status.LastScaleTime)
}

func TestMergeMetrics_PartialSources(t *testing.T) {
	hpa := &autoscalingv2.HorizontalPodAutoscaler{
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			Metrics: []autoscalingv2.MetricSpec{
				{
					Type: autoscalingv2.PodsMetricSourceType,
					Pods: &autoscalingv2.PodsMetricSource{
						Metric: autoscalingv2.MetricIdentifier{Name: "requests_per_second"},
						Target: autoscalingv2.MetricTarget{
							AverageValue: resource.NewQuantity(100, resource.DecimalSI),
						},
					},
				},
			},
		},
		Status: autoscalingv2.HorizontalPodAutoscalerStatus{
			CurrentMetrics: []autoscalingv2.MetricStatus{
				{
					Type: autoscalingv2.ExternalMetricSourceType,
					External: &autoscalingv2.ExternalMetricStatus{
						Metric: autoscalingv2.MetricIdentifier{Name: "queue_depth"},
						Current: autoscalingv2.MetricValueStatus{
							Value: resource.NewQuantity(7, resource.DecimalSI),
						},
					},
				},
			},
		},
	}

	metrics := mergeMetrics(hpa)
	require.Len(t, metrics, 2)

	// Target-only metric.
	assert.Equal(t, "requests_per_second", metrics[0].Name)
	assert.Equal(t, "100", metrics[0].TargetValue)
	assert.Empty(t, metrics[0].CurrentValue)

	// Current-only metric.
	assert.Equal(t, "queue_depth", metrics[1].Name)
	assert.Empty(t, metrics[1].TargetValue)
	assert.Equal(t, "7", metrics[1].CurrentValue)
}

func TestMergeMetrics_SameNameMerges(t *testing.T) {
	hpa := &autoscalingv2.HorizontalPodAutoscaler{
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			Metrics: []autoscalingv2.MetricSpec{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricSource{
						Name:   corev1.ResourceMemory,
						Target: autoscalingv2.MetricTarget{Value: resource.NewQuantity(1024, resource.BinarySI)},
					},
				},
			},
		},
		Status: autoscalingv2.HorizontalPodAutoscalerStatus{
			CurrentMetrics: []autoscalingv2.MetricStatus{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricStatus{
						Name:    corev1.ResourceMemory,
						Current: autoscalingv2.MetricValueStatus{Value: resource.NewQuantity(900, resource.BinarySI)},
					},
				},
			},
		},
	}

	metrics := mergeMetrics(hpa)
	require.Len(t, metrics, 1)
	assert.Equal(t, "memory", metrics[0].Name)
	assert.NotEmpty(t, metrics[0].TargetValue)
	assert.NotEmpty(t, metrics[0].CurrentValue)
}
