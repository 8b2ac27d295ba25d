package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeServiceFile(t *testing.T, soaDir, service, filename, body string) {
	t.Helper()
	dir := filepath.Join(soaDir, service)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(body), 0o644))
}

func TestLoadJobConfig(t *testing.T) {
	soaDir := t.TempDir()
	writeServiceFile(t, soaDir, "web", "kubernetes-uswest1-prod.yaml", `
main:
  instances: 4
  desired_state: start
  bounce_method: brutal
  pool: custom-pool
  namespace: web-ns
  registrations:
    - web.everything
canary:
  instances: 1
`)

	jc, err := LoadJobConfig(soaDir, "web", "main", "uswest1-prod", "kubernetes")
	require.NoError(t, err)

	assert.Equal(t, "web", jc.Service)
	assert.Equal(t, "main", jc.Instance)
	assert.Equal(t, "uswest1-prod", jc.Cluster)
	assert.Equal(t, int32(4), jc.Instances)
	assert.Equal(t, "brutal", jc.BounceMethod)
	assert.Equal(t, "custom-pool", jc.Pool)
	assert.Equal(t, "web-ns", jc.Namespace)
	assert.Equal(t, "web.everything", jc.Registration())
	assert.Equal(t, "everything", jc.RegistrationNamespace())
}

func TestLoadJobConfig_Defaults(t *testing.T) {
	soaDir := t.TempDir()
	writeServiceFile(t, soaDir, "web", "kubernetes-uswest1-prod.yaml", "main:\n  instances: 2\n")

	jc, err := LoadJobConfig(soaDir, "web", "main", "uswest1-prod", "kubernetes")
	require.NoError(t, err)

	assert.Equal(t, "start", jc.DesiredState)
	assert.Equal(t, "crossover", jc.BounceMethod)
	assert.Equal(t, "default", jc.Pool)
	assert.Equal(t, "meshstat", jc.Namespace)
	assert.Equal(t, "web.main", jc.Registration())
	assert.Equal(t, "main", jc.RegistrationNamespace())
	assert.False(t, jc.AutoscalingEnabled())
	assert.Empty(t, jc.DecisionPolicy())
}

func TestLoadJobConfig_UnknownInstance(t *testing.T) {
	soaDir := t.TempDir()
	writeServiceFile(t, soaDir, "web", "kubernetes-uswest1-prod.yaml", "main:\n  instances: 2\n")

	_, err := LoadJobConfig(soaDir, "web", "ghost", "uswest1-prod", "kubernetes")
	assert.ErrorContains(t, err, `instance "ghost" not defined`)
}

func TestLoadJobConfig_MissingFile(t *testing.T) {
	_, err := LoadJobConfig(t.TempDir(), "web", "main", "uswest1-prod", "kubernetes")
	assert.Error(t, err)
}

func TestDeploymentName(t *testing.T) {
	jc := &JobConfig{Service: "my_service", Instance: "canary.v2"}
	assert.Equal(t, "my--service-canary-v2", jc.DeploymentName())
}

func TestDesiredInstances(t *testing.T) {
	running := &JobConfig{Instances: 5, DesiredState: "start"}
	assert.Equal(t, int32(5), running.DesiredInstances())

	stopped := &JobConfig{Instances: 5, DesiredState: "stop"}
	assert.Zero(t, stopped.DesiredInstances())
}

func TestLoadNamespaceConfig(t *testing.T) {
	soaDir := t.TempDir()
	writeServiceFile(t, soaDir, "web", "mesh.yaml", `
main:
  proxy_port: 20001
batch:
  {}
`)

	ns, err := LoadNamespaceConfig(soaDir, "web", "main")
	require.NoError(t, err)
	assert.True(t, ns.InMesh())
	require.NotNil(t, ns.ProxyPort)
	assert.Equal(t, 20001, *ns.ProxyPort)

	// Declared namespace without a proxy port is not mesh-facing.
	ns, err = LoadNamespaceConfig(soaDir, "web", "batch")
	require.NoError(t, err)
	assert.False(t, ns.InMesh())

	// Undeclared namespace yields the zero value.
	ns, err = LoadNamespaceConfig(soaDir, "web", "ghost")
	require.NoError(t, err)
	assert.False(t, ns.InMesh())
}

func TestLoadNamespaceConfig_MissingFileIsNotMesh(t *testing.T) {
	ns, err := LoadNamespaceConfig(t.TempDir(), "web", "main")
	require.NoError(t, err)
	assert.False(t, ns.InMesh())
}

func TestAutoscalingAccessors(t *testing.T) {
	jc := &JobConfig{Autoscaling: &AutoscalingParams{DecisionPolicy: "bespoke", MinInstances: 1, MaxInstances: 10}}
	assert.True(t, jc.AutoscalingEnabled())
	assert.Equal(t, "bespoke", jc.DecisionPolicy())
}
