package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/errors"
)

func TestParseInstanceType(t *testing.T) {
	for _, name := range []string{"kubernetes", "cassandracluster", "kafkacluster", "flink"} {
		parsed, err := ParseInstanceType(name)
		require.NoError(t, err)
		assert.Equal(t, InstanceType(name), parsed)
	}
}

func TestParseInstanceType_UnknownNamesKnownTypes(t *testing.T) {
	_, err := ParseInstanceType("marathon")
	require.Error(t, err)
	assert.Equal(t, errors.ErrUnknownInstanceType, errors.CodeOf(err))
	assert.ErrorContains(t, err, `unknown instance type: "marathon"`)
	assert.ErrorContains(t, err, "cassandracluster, flink, kafkacluster, kubernetes")
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		t    InstanceType
		want Capabilities
	}{
		{TypeKubernetes, Capabilities{Kubernetes: true}},
		{TypeCassandraCluster, Capabilities{Kubernetes: true, CustomResource: true}},
		{TypeKafkaCluster, Capabilities{CustomResource: true}},
		{TypeFlink, Capabilities{CustomResource: true, SetState: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.t.Capabilities(), string(tt.t))
	}
}

func TestCustomResourceID(t *testing.T) {
	jc := &config.JobConfig{Namespace: "meshstat"}

	id := TypeFlink.CustomResourceID("my_service", "canary.v2", jc)
	assert.Equal(t, "meshstat.dev", id.Group)
	assert.Equal(t, "v1alpha1", id.Version)
	assert.Equal(t, "flinkclusters", id.Plural)
	assert.Equal(t, "meshstat", id.Namespace)
	// Underscores and dots are invalid in resource names.
	assert.Equal(t, "my--service-canary-v2", id.Name)
}
