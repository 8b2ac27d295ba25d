package fetch

import (
	"context"
	"fmt"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
)

// DesiredStateAnnotation is written by the desired-state transition and read
// by the workload's controller.
const DesiredStateAnnotation = "meshstat.dev/desired-state"

// CRID identifies one custom-resource workload object.
type CRID struct {
	Group     string
	Version   string
	Plural    string
	Namespace string
	Name      string
}

func (id CRID) gvr() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: id.Group, Version: id.Version, Resource: id.Plural}
}

// CustomResource fetches the custom-resource object, or nil if it does not
// exist. An absent object is a valid degraded state, not an error.
func (c *Client) CustomResource(ctx context.Context, id CRID) (*unstructured.Unstructured, error) {
	obj, err := c.Dynamic.Resource(id.gvr()).Namespace(id.Namespace).Get(ctx, id.Name, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting custom resource %s/%s: %w", id.Namespace, id.Name, err)
	}
	return obj, nil
}

// SetCustomResourceDesiredState records the requested desired state on the
// custom resource. This is the engine's single state-mutating operation.
func (c *Client) SetCustomResourceDesiredState(ctx context.Context, id CRID, state string) error {
	patch := []byte(fmt.Sprintf(
		`{"metadata":{"annotations":{%q:%q}}}`, DesiredStateAnnotation, state,
	))
	_, err := c.Dynamic.Resource(id.gvr()).Namespace(id.Namespace).Patch(
		ctx, id.Name, types.MergePatchType, patch, metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("setting desired state %q on %s/%s: %w", state, id.Namespace, id.Name, err)
	}
	return nil
}
