package status

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	"github.com/meshstat/meshstat/internal/convert"
	"github.com/meshstat/meshstat/internal/fetch"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/pkg/model"
)

const (
	testCluster   = "testcluster"
	testService   = "web"
	testInstance  = "main"
	testNamespace = "meshstat"
)

// stubSource is a canned mesh backend source for engine tests.
type stubSource struct {
	flavor   Flavor
	backends []model.MeshBackend
	err      error
}

// Flavor alias so the stub can be declared tersely.
type Flavor = mesh.Flavor

func (s *stubSource) Flavor() Flavor { return s.flavor }

func (s *stubSource) Backends(_ context.Context, _, _ string) ([]model.MeshBackend, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.backends, nil
}

func (s *stubSource) Sort(_ []model.MeshBackend) {}

type testEnv struct {
	ctx     context.Context
	kube    *fake.Clientset
	dyn     *dynamicfake.FakeDynamicClient
	soaDir  string
	haproxy *stubSource
	envoy   *stubSource
	engine  *Engine
}

func newTestEnv(t *testing.T, objects ...runtime.Object) *testEnv {
	t.Helper()

	listKinds := map[schema.GroupVersionResource]string{
		{Group: "meshstat.dev", Version: "v1alpha1", Resource: "cassandraclusters"}: "CassandraClusterList",
		{Group: "meshstat.dev", Version: "v1alpha1", Resource: "kafkaclusters"}:     "KafkaClusterList",
		{Group: "meshstat.dev", Version: "v1alpha1", Resource: "flinkclusters"}:     "FlinkClusterList",
	}

	env := &testEnv{
		ctx:     context.Background(),
		kube:    fake.NewSimpleClientset(objects...),
		dyn:     dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds),
		soaDir:  t.TempDir(),
		haproxy: &stubSource{flavor: mesh.FlavorHAProxy},
		envoy:   &stubSource{flavor: mesh.FlavorEnvoy},
	}
	env.engine = NewEngine(Settings{
		Cluster: testCluster,
		SOADir:  env.soaDir,
		Client:  fetch.NewClient(env.kube, env.dyn),
		HAProxy: env.haproxy,
		Envoy:   env.envoy,
	}, nil, nil)
	return env
}

// writeJobConfig writes the instance's job config file for one type prefix.
func (env *testEnv) writeJobConfig(t *testing.T, typePrefix, body string) {
	t.Helper()
	dir := filepath.Join(env.soaDir, testService)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", typePrefix, testCluster))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeMeshConfig marks the instance's registration namespace as mesh-facing.
func (env *testEnv) writeMeshConfig(t *testing.T, body string) {
	t.Helper()
	dir := filepath.Join(env.soaDir, testService)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mesh.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func instanceLabels(gitSHA, configSHA string) map[string]string {
	return map[string]string{
		convert.LabelService:   testService,
		convert.LabelInstance:  testInstance,
		convert.LabelGitSHA:    gitSHA,
		convert.LabelConfigSHA: configSHA,
	}
}

func testPod(name, ip, gitSHA string, ready bool, owner string) *corev1.Pod {
	readyStatus := corev1.ConditionFalse
	if ready {
		readyStatus = corev1.ConditionTrue
	}
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			Labels:    instanceLabels(gitSHA, "conf1"),
		},
		Status: corev1.PodStatus{
			Phase:  corev1.PodRunning,
			PodIP:  ip,
			HostIP: "192.168.0.1",
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodScheduled, Status: corev1.ConditionTrue},
				{Type: corev1.PodReady, Status: readyStatus},
			},
		},
	}
	if owner != "" {
		pod.OwnerReferences = []metav1.OwnerReference{{Kind: "ReplicaSet", Name: owner}}
	}
	return pod
}

func testReplicaSet(name, gitSHA string, replicas, ready int32) *appsv1.ReplicaSet {
	return &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			Labels:    instanceLabels(gitSHA, "conf1"),
		},
		Spec:   appsv1.ReplicaSetSpec{Replicas: ptr.To(replicas)},
		Status: appsv1.ReplicaSetStatus{ReadyReplicas: ready},
	}
}

func testDeployment(replicas, ready, updated int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "web-main",
			Namespace: testNamespace,
			Labels:    instanceLabels("abc123", "conf1"),
		},
		Spec:   appsv1.DeploymentSpec{Replicas: ptr.To(replicas)},
		Status: appsv1.DeploymentStatus{ReadyReplicas: ready, UpdatedReplicas: updated},
	}
}

func testNode(name, zone string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"kubernetes.io/hostname": name,
				convert.LabelZone:        zone,
			},
		},
	}
}

func testCustomResource(plural, name string, status map[string]interface{}) *unstructured.Unstructured {
	kindByPlural := map[string]string{
		"cassandraclusters": "CassandraCluster",
		"kafkaclusters":     "KafkaCluster",
		"flinkclusters":     "FlinkCluster",
	}
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "meshstat.dev/v1alpha1",
		"kind":       kindByPlural[plural],
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": testNamespace,
		},
		"status": status,
	}}
}
