package model

// LastScaleTimeUnknown is the sentinel for an absent autoscaler object.
const LastScaleTimeUnknown = "unknown (could not find HPA object)"

// AutoscalingStatus summarizes the horizontal autoscaler attached to an
// instance. An absent autoscaler yields the sentinel values below rather than
// an error: not every instance variant has autoscaling enabled.
type AutoscalingStatus struct {
	MinInstances    int32               `json:"min_instances"`
	MaxInstances    int32               `json:"max_instances"`
	Metrics         []AutoscalingMetric `json:"metrics"`
	DesiredReplicas int32               `json:"desired_replicas"`
	LastScaleTime   string              `json:"last_scale_time"`
}

// AutoscalerNotFoundStatus returns the defined degraded-but-valid snapshot for
// a missing autoscaler object.
func AutoscalerNotFoundStatus() *AutoscalingStatus {
	return &AutoscalingStatus{
		MinInstances:    -1,
		MaxInstances:    -1,
		Metrics:         []AutoscalingMetric{},
		DesiredReplicas: -1,
		LastScaleTime:   LastScaleTimeUnknown,
	}
}

// AutoscalingMetric is one named metric merged from the autoscaler's target
// spec and live status. A metric present in only one source yields a
// partially-populated record.
type AutoscalingMetric struct {
	Name         string `json:"name"`
	TargetValue  string `json:"target_value,omitempty"`
	CurrentValue string `json:"current_value,omitempty"`
}
