package status

import (
	"context"

	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/pkg/model"
)

// customStatus passes through the metadata and status sub-objects of the
// instance's custom resource. The controller owns their schema; the engine
// does not interpret them. An absent resource yields an empty status.
func (e *Engine) customStatus(ctx context.Context, req Request) (*model.CustomWorkloadStatus, error) {
	jc, err := e.loadJobConfig(req)
	if err != nil {
		return nil, err
	}

	id := req.Type.CustomResourceID(req.Service, req.Instance, jc)
	obj, err := e.settings.Client.CustomResource(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSchedulerTransport, "status", err,
			"fetching custom resource for %s.%s", req.Service, req.Instance)
	}

	custom := &model.CustomWorkloadStatus{}
	if obj == nil {
		return custom, nil
	}

	if st, ok := obj.Object["status"].(map[string]interface{}); ok {
		custom.Status = st
	}
	if md, ok := obj.Object["metadata"].(map[string]interface{}); ok {
		custom.Metadata = md
	}
	return custom, nil
}
