// Package fetch is the boundary to the orchestration backend. It issues typed
// list/get queries and hands raw objects to internal/convert; nothing
// downstream of this package touches client-go types except through records.
//
// Every call is a fresh query: status is always re-derived from current
// backend state, never cached across invocations.
package fetch

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/meshstat/meshstat/internal/convert"
)

// Client bundles the orchestration backend clients for one cluster. The
// clients are read-only from the engine's perspective except for the explicit
// desired-state transition in custom.go.
type Client struct {
	Kube    kubernetes.Interface
	Dynamic dynamic.Interface
}

// NewClient creates a fetch client from pre-built backend clients.
func NewClient(kube kubernetes.Interface, dyn dynamic.Interface) *Client {
	return &Client{Kube: kube, Dynamic: dyn}
}

func serviceInstanceSelector(service, instance string) string {
	return fmt.Sprintf("%s=%s,%s=%s", convert.LabelService, service, convert.LabelInstance, instance)
}

// PodsForServiceInstance lists all pods belonging to the instance.
func (c *Client) PodsForServiceInstance(ctx context.Context, namespace, service, instance string) ([]corev1.Pod, error) {
	list, err := c.Kube.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: serviceInstanceSelector(service, instance),
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods for %s.%s: %w", service, instance, err)
	}
	return list.Items, nil
}

// ReplicaSetsForServiceInstance lists all replicasets belonging to the
// instance, including decommissioned leftovers still present in the backend.
func (c *Client) ReplicaSetsForServiceInstance(ctx context.Context, namespace, service, instance string) ([]appsv1.ReplicaSet, error) {
	list, err := c.Kube.AppsV1().ReplicaSets(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: serviceInstanceSelector(service, instance),
	})
	if err != nil {
		return nil, fmt.Errorf("listing replicasets for %s.%s: %w", service, instance, err)
	}
	return list.Items, nil
}

// ControllerRevisionsForServiceInstance lists the controller revisions of an
// instance managed through a stateful controller (persistent volumes).
func (c *Client) ControllerRevisionsForServiceInstance(ctx context.Context, namespace, service, instance string) ([]appsv1.ControllerRevision, error) {
	list, err := c.Kube.AppsV1().ControllerRevisions(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: serviceInstanceSelector(service, instance),
	})
	if err != nil {
		return nil, fmt.Errorf("listing controller revisions for %s.%s: %w", service, instance, err)
	}
	return list.Items, nil
}

// AppByName fetches the scheduler app object (Deployment) by sanitised name.
func (c *Client) AppByName(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	d, err := c.Kube.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting app %s/%s: %w", namespace, name, err)
	}
	return d, nil
}

// Autoscaler fetches the horizontal autoscaler for an app. NotFound errors
// propagate untranslated so callers can apply the absent-autoscaler sentinel.
func (c *Client) Autoscaler(ctx context.Context, namespace, name string) (*autoscalingv2.HorizontalPodAutoscaler, error) {
	return c.Kube.AutoscalingV2().HorizontalPodAutoscalers(namespace).Get(ctx, name, metav1.GetOptions{})
}

// Nodes lists all cluster nodes for topology resolution.
func (c *Client) Nodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.Kube.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return list.Items, nil
}

// EventMessagesForPod returns the human-readable messages of all events
// involving the pod, oldest first.
func (c *Client) EventMessagesForPod(ctx context.Context, pod *corev1.Pod) ([]string, error) {
	selector := fmt.Sprintf("involvedObject.name=%s,involvedObject.namespace=%s", pod.Name, pod.Namespace)
	list, err := c.Kube.CoreV1().Events(pod.Namespace).List(ctx, metav1.ListOptions{FieldSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing events for pod %s: %w", pod.Name, err)
	}
	messages := make([]string, 0, len(list.Items))
	for _, ev := range list.Items {
		messages = append(messages, ev.Message)
	}
	return messages, nil
}

// TailLines returns the last n log lines of one container.
func (c *Client) TailLines(ctx context.Context, pod *corev1.Pod, container string, n int64) ([]string, error) {
	req := c.Kube.CoreV1().Pods(pod.Namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
		Container: container,
		TailLines: &n,
	})
	raw, err := req.DoRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailing logs for %s/%s: %w", pod.Name, container, err)
	}
	return splitLines(raw), nil
}

func splitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var lines []string
	start := 0
	for i, b := range raw {
		if b == '\n' {
			lines = append(lines, string(raw[start:i]))
			start = i + 1
		}
	}
	if start < len(raw) {
		lines = append(lines, string(raw[start:]))
	}
	return lines
}
