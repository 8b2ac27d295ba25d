package model

// InstanceStatus is the top-level status snapshot for one service instance.
// Depending on the instance flavor it carries a Kubernetes status (legacy or
// versioned shape, never both), a custom-workload status, or both side by side.
// It is a value type: constructed once per query and never mutated afterwards.
type InstanceStatus struct {
	Service  string `json:"service"`
	Instance string `json:"instance"`
	Cluster  string `json:"cluster"`

	Kubernetes   *KubernetesStatus     `json:"kubernetes,omitempty"`
	KubernetesV2 *KubernetesStatusV2   `json:"kubernetes_v2,omitempty"`
	Custom       *CustomWorkloadStatus `json:"custom,omitempty"`
}

// KubernetesStatus is the legacy per-pod/per-replicaset snapshot shape.
type KubernetesStatus struct {
	AppID        string            `json:"app_id"`
	AppCount     int               `json:"app_count"`
	ActiveShas   []VersionIdentity `json:"active_shas"`
	DesiredState string            `json:"desired_state"`
	BounceMethod string            `json:"bounce_method"`

	ExpectedInstanceCount int32  `json:"expected_instance_count"`
	RunningInstanceCount  int32  `json:"running_instance_count"`
	DeployStatus          string `json:"deploy_status"`
	DeployStatusMessage   string `json:"deploy_status_message"`
	CreateTimestamp       int64  `json:"create_timestamp"`
	Namespace             string `json:"namespace"`

	Pods        []PodDetail    `json:"pods"`
	ReplicaSets []ReplicaGroup `json:"replicasets"`

	Autoscaling  *AutoscalingStatus `json:"autoscaling_status,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	EvictedCount int                `json:"evicted_count"`

	HAProxy *MeshStatus `json:"haproxy,omitempty"`
	Envoy   *MeshStatus `json:"envoy,omitempty"`
}

// KubernetesStatusV2 is the per-version, bounce-aware snapshot shape.
type KubernetesStatusV2 struct {
	AppName          string `json:"app_name"`
	DesiredState     string `json:"desired_state"`
	DesiredInstances int32  `json:"desired_instances"`
	BounceMethod     string `json:"bounce_method"`

	Versions     []ReplicaVersion `json:"versions"`
	EvictedCount int              `json:"evicted_count"`

	Envoy *MeshStatus `json:"envoy,omitempty"`
}

// VersionIdentity is the immutable (code revision, config) hash pair that
// identifies one deployable build+config combination.
type VersionIdentity struct {
	GitSHA    string `json:"git_sha"`
	ConfigSHA string `json:"config_sha"`
}

// ReplicaGroup is the normalized view of a scheduler replica group: a
// ReplicaSet, or a ControllerRevision for workloads with persistent volumes.
// For ControllerRevisions the replica counts are derived from the member pods.
type ReplicaGroup struct {
	Name            string `json:"name"`
	Replicas        int32  `json:"replicas"`
	ReadyReplicas   int32  `json:"ready_replicas"`
	CreateTimestamp int64  `json:"create_timestamp"`
	GitSHA          string `json:"git_sha"`
	ConfigSHA       string `json:"config_sha"`
}

// ReplicaVersion groups the pods that share one version identity, attached to
// the replica group that owns them. Ordered newest first in a snapshot.
type ReplicaVersion struct {
	Name            string      `json:"name"`
	Type            string      `json:"type"` // "ReplicaSet" or "ControllerRevision"
	Replicas        int32       `json:"replicas"`
	ReadyReplicas   int32       `json:"ready_replicas"`
	CreateTimestamp int64       `json:"create_timestamp"`
	GitSHA          string      `json:"git_sha"`
	ConfigSHA       string      `json:"config_sha"`
	Pods            []PodRecord `json:"pods"`
}

// PodRecord is one running or terminated container group, converted at the
// fetch boundary. Ready is scheduler readiness until mesh backend information
// is available, at which point it becomes
// scheduler-ready AND address-present-in-mesh.
type PodRecord struct {
	Name      string `json:"name"`
	IP        string `json:"ip"`
	Host      string `json:"host"`
	Phase     string `json:"phase"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Scheduled bool   `json:"scheduled"`
	Ready     bool   `json:"ready"`

	Containers []ContainerRecord `json:"containers"`

	CreateTimestamp int64  `json:"create_timestamp"`
	DeleteTimestamp *int64 `json:"delete_timestamp,omitempty"`

	GitSHA    string `json:"git_sha"`
	ConfigSHA string `json:"config_sha"`

	// Owner reference, used to attach the pod to its replica group.
	OwnerKind string `json:"-"`
	OwnerName string `json:"-"`
}

// ContainerRecord is one container's current and previous state within a pod.
type ContainerRecord struct {
	Name         string `json:"name"`
	RestartCount int32  `json:"restart_count"`

	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`

	LastState    string `json:"last_state,omitempty"`
	LastReason   string `json:"last_reason,omitempty"`
	LastMessage  string `json:"last_message,omitempty"`
	LastDuration *int64 `json:"last_duration,omitempty"` // seconds

	StartTimestamp        *int64 `json:"timestamp,omitempty"`
	HealthcheckGracePeriod *int32 `json:"healthcheck_grace_period,omitempty"`
}

// PodDetail is the verbose per-pod record of the legacy shape, including
// container log tails and pod events.
type PodDetail struct {
	Name              string          `json:"name"`
	Host              string          `json:"host"`
	DeployedTimestamp int64           `json:"deployed_timestamp"`
	Phase             string          `json:"phase"`
	Ready             bool            `json:"ready"`
	Reason            string          `json:"reason,omitempty"`
	Message           string          `json:"message,omitempty"`
	Events            []string        `json:"events"`
	GitSHA            string          `json:"git_sha"`
	ConfigSHA         string          `json:"config_sha"`
	Containers        []ContainerLogs `json:"containers"`
}

// ContainerLogs holds the tail of one container's log stream.
type ContainerLogs struct {
	Name      string   `json:"name"`
	TailLines []string `json:"tail_lines"`
	Error     string   `json:"error,omitempty"`
}

// CustomWorkloadStatus is the metadata+status passthrough for
// custom-resource-managed workloads. The controller owns the schema; the
// engine does not interpret it.
type CustomWorkloadStatus struct {
	Status   map[string]interface{} `json:"status,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AppRecord is the normalized view of the scheduler app object (Deployment).
type AppRecord struct {
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	Replicas          int32  `json:"replicas"`
	ReadyReplicas     int32  `json:"ready_replicas"`
	UpdatedReplicas   int32  `json:"updated_replicas"`
	AvailableReplicas int32  `json:"available_replicas"`
	CreateTimestamp   int64  `json:"create_timestamp"`
	GitSHA            string `json:"git_sha"`
	ConfigSHA         string `json:"config_sha"`
}
