package convert

import (
	appsv1 "k8s.io/api/apps/v1"

	"github.com/meshstat/meshstat/pkg/model"
)

// ReplicaSetToGroup converts a ReplicaSet to a model.ReplicaGroup.
// A nil status ready count normalizes to 0: older or degraded objects may
// omit the field, which is not an error condition.
func ReplicaSetToGroup(rs *appsv1.ReplicaSet) model.ReplicaGroup {
	var replicas int32
	if rs.Spec.Replicas != nil {
		replicas = *rs.Spec.Replicas
	}
	return model.ReplicaGroup{
		Name:            rs.Name,
		Replicas:        replicas,
		ReadyReplicas:   rs.Status.ReadyReplicas,
		CreateTimestamp: rs.CreationTimestamp.Unix(),
		GitSHA:          rs.Labels[LabelGitSHA],
		ConfigSHA:       rs.Labels[LabelConfigSHA],
	}
}

// ControllerRevisionToGroup converts a ControllerRevision to a
// model.ReplicaGroup. Revisions carry no replica counts of their own; the
// version reconciler derives both counts from the member pods.
func ControllerRevisionToGroup(cr *appsv1.ControllerRevision) model.ReplicaGroup {
	return model.ReplicaGroup{
		Name:            cr.Name,
		CreateTimestamp: cr.CreationTimestamp.Unix(),
		GitSHA:          cr.Labels[LabelGitSHA],
		ConfigSHA:       cr.Labels[LabelConfigSHA],
	}
}

// DeploymentToApp converts the scheduler app object to a model.AppRecord.
func DeploymentToApp(d *appsv1.Deployment) model.AppRecord {
	var replicas int32
	if d.Spec.Replicas != nil {
		replicas = *d.Spec.Replicas
	}
	return model.AppRecord{
		Name:              d.Name,
		Namespace:         d.Namespace,
		Replicas:          replicas,
		ReadyReplicas:     d.Status.ReadyReplicas,
		UpdatedReplicas:   d.Status.UpdatedReplicas,
		AvailableReplicas: d.Status.AvailableReplicas,
		CreateTimestamp:   d.CreationTimestamp.Unix(),
		GitSHA:            d.Labels[LabelGitSHA],
		ConfigSHA:         d.Labels[LabelConfigSHA],
	}
}
