package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobConfig is the declared configuration of one service instance on one
// cluster, loaded from <soa-dir>/<service>/<type>-<cluster>.yaml.
type JobConfig struct {
	Service  string `yaml:"-"`
	Instance string `yaml:"-"`
	Cluster  string `yaml:"-"`

	Instances     int32    `yaml:"instances"`
	DesiredState  string   `yaml:"desired_state"`
	BounceMethod  string   `yaml:"bounce_method"`
	Pool          string   `yaml:"pool"`
	Namespace     string   `yaml:"namespace"`
	Registrations []string `yaml:"registrations"`

	Autoscaling       *AutoscalingParams `yaml:"autoscaling"`
	PersistentVolumes []PersistentVolume `yaml:"persistent_volumes"`
}

// AutoscalingParams configure the instance's horizontal autoscaler.
type AutoscalingParams struct {
	DecisionPolicy string `yaml:"decision_policy"`
	MinInstances   int32  `yaml:"min_instances"`
	MaxInstances   int32  `yaml:"max_instances"`
}

// PersistentVolume declares one persistent volume of the instance. Instances
// with persistent volumes are managed through controller revisions instead of
// replicasets.
type PersistentVolume struct {
	ContainerPath string `yaml:"container_path"`
	Size          string `yaml:"size"`
	StorageClass  string `yaml:"storage_class"`
}

// NamespaceConfig is the mesh-facing configuration of one registration
// namespace, from <soa-dir>/<service>/mesh.yaml. An instance with a proxy
// port is routed through the mesh.
type NamespaceConfig struct {
	ProxyPort *int `yaml:"proxy_port"`
}

// InMesh reports whether the namespace declares a mesh-facing port.
func (n NamespaceConfig) InMesh() bool { return n.ProxyPort != nil }

// LoadJobConfig reads the instance's job config for the given cluster.
// The type prefix selects the config file (e.g. "kubernetes-<cluster>.yaml").
func LoadJobConfig(soaDir, service, instance, cluster, typePrefix string) (*JobConfig, error) {
	path := filepath.Join(soaDir, service, fmt.Sprintf("%s-%s.yaml", typePrefix, cluster))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job config %s: %w", path, err)
	}

	byInstance := map[string]*JobConfig{}
	if err := yaml.Unmarshal(raw, &byInstance); err != nil {
		return nil, fmt.Errorf("parsing job config %s: %w", path, err)
	}

	jc, ok := byInstance[instance]
	if !ok {
		return nil, fmt.Errorf("instance %q not defined in %s", instance, path)
	}
	jc.Service = service
	jc.Instance = instance
	jc.Cluster = cluster
	jc.applyDefaults()
	return jc, nil
}

// LoadNamespaceConfig reads the mesh namespace config for one registration
// namespace. A missing file or namespace yields a zero NamespaceConfig, not
// an error: most services are not in the mesh.
func LoadNamespaceConfig(soaDir, service, namespace string) (NamespaceConfig, error) {
	path := filepath.Join(soaDir, service, "mesh.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NamespaceConfig{}, nil
		}
		return NamespaceConfig{}, fmt.Errorf("reading namespace config %s: %w", path, err)
	}

	byNamespace := map[string]NamespaceConfig{}
	if err := yaml.Unmarshal(raw, &byNamespace); err != nil {
		return NamespaceConfig{}, fmt.Errorf("parsing namespace config %s: %w", path, err)
	}
	return byNamespace[namespace], nil
}

func (j *JobConfig) applyDefaults() {
	if j.DesiredState == "" {
		j.DesiredState = "start"
	}
	if j.BounceMethod == "" {
		j.BounceMethod = "crossover"
	}
	if j.Pool == "" {
		j.Pool = "default"
	}
	if j.Namespace == "" {
		j.Namespace = "meshstat"
	}
}

// DeploymentName is the sanitised scheduler app name for this instance.
// Underscores are not valid in Kubernetes object names.
func (j *JobConfig) DeploymentName() string {
	return sanitise(j.Service) + "-" + sanitise(j.Instance)
}

// DesiredInstances is the declared count, or zero when the instance is stopped.
func (j *JobConfig) DesiredInstances() int32 {
	if j.DesiredState == "stop" {
		return 0
	}
	return j.Instances
}

// Registration is the mesh registration name the instance advertises under.
func (j *JobConfig) Registration() string {
	if len(j.Registrations) > 0 {
		return j.Registrations[0]
	}
	return j.Service + "." + j.Instance
}

// RegistrationNamespace is the namespace part of the primary registration.
func (j *JobConfig) RegistrationNamespace() string {
	if len(j.Registrations) > 0 {
		if _, ns, ok := strings.Cut(j.Registrations[0], "."); ok {
			return ns
		}
	}
	return j.Instance
}

// AutoscalingEnabled reports whether the instance declares autoscaling params.
func (j *JobConfig) AutoscalingEnabled() bool { return j.Autoscaling != nil }

// DecisionPolicy returns the autoscaling decision policy, "" when unset.
// "bespoke" policies manage replicas outside the cluster autoscaler and skip
// the autoscaling status fetch entirely.
func (j *JobConfig) DecisionPolicy() string {
	if j.Autoscaling == nil {
		return ""
	}
	return j.Autoscaling.DecisionPolicy
}

func sanitise(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "_", "--"), ".", "-")
}
