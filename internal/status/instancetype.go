package status

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/internal/fetch"
)

// InstanceType is the closed set of workload flavors the engine can report
// on. Each flavor carries its capability set as data; dispatch never tests
// set membership at runtime.
type InstanceType string

const (
	// TypeKubernetes is a plain scheduler-native long-running service.
	TypeKubernetes InstanceType = "kubernetes"
	// TypeCassandraCluster is scheduler-native and controller-managed at once.
	TypeCassandraCluster InstanceType = "cassandracluster"
	// TypeKafkaCluster is purely controller-managed.
	TypeKafkaCluster InstanceType = "kafkacluster"
	// TypeFlink is purely controller-managed and supports desired-state
	// transitions.
	TypeFlink InstanceType = "flink"
)

// Capabilities describe what an instance flavor supports.
type Capabilities struct {
	Kubernetes     bool // has scheduler-native app/replica-group/pod state
	CustomResource bool // has a controller-managed custom resource
	SetState       bool // supports the desired-state transition
}

type typeSpec struct {
	caps         Capabilities
	configPrefix string
	crGroup      string
	crVersion    string
	crPlural     string
}

var instanceTypes = map[InstanceType]typeSpec{
	TypeKubernetes: {
		caps:         Capabilities{Kubernetes: true},
		configPrefix: "kubernetes",
	},
	TypeCassandraCluster: {
		caps:         Capabilities{Kubernetes: true, CustomResource: true},
		configPrefix: "cassandracluster",
		crGroup:      "meshstat.dev",
		crVersion:    "v1alpha1",
		crPlural:     "cassandraclusters",
	},
	TypeKafkaCluster: {
		caps:         Capabilities{CustomResource: true},
		configPrefix: "kafkacluster",
		crGroup:      "meshstat.dev",
		crVersion:    "v1alpha1",
		crPlural:     "kafkaclusters",
	},
	TypeFlink: {
		caps:         Capabilities{CustomResource: true, SetState: true},
		configPrefix: "flink",
		crGroup:      "meshstat.dev",
		crVersion:    "v1alpha1",
		crPlural:     "flinkclusters",
	},
}

// ParseInstanceType resolves a type name, or returns a configuration error
// naming the known types. No partial status is ever built for an unknown type.
func ParseInstanceType(name string) (InstanceType, error) {
	t := InstanceType(name)
	if _, ok := instanceTypes[t]; !ok {
		return "", errors.New(errors.ErrUnknownInstanceType, "status",
			"unknown instance type: %q, can handle: %s", name, knownTypeNames())
	}
	return t, nil
}

func knownTypeNames() string {
	names := make([]string, 0, len(instanceTypes))
	for t := range instanceTypes {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Capabilities returns the flavor's capability set.
func (t InstanceType) Capabilities() Capabilities { return instanceTypes[t].caps }

// ConfigPrefix is the job-config file prefix for this flavor.
func (t InstanceType) ConfigPrefix() string { return instanceTypes[t].configPrefix }

// CustomResourceID builds the custom resource identity for a service
// instance of this flavor.
func (t InstanceType) CustomResourceID(service, instance string, jc *config.JobConfig) fetch.CRID {
	spec := instanceTypes[t]
	name := fmt.Sprintf("%s-%s", sanitiseCRName(service), sanitiseCRName(instance))
	return fetch.CRID{
		Group:     spec.crGroup,
		Version:   spec.crVersion,
		Plural:    spec.crPlural,
		Namespace: jc.Namespace,
		Name:      name,
	}
}

func sanitiseCRName(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "_", "--"), ".", "-")
}
