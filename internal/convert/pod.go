package convert

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/meshstat/meshstat/pkg/model"
)

// PodToRecord converts a Kubernetes Pod to a model.PodRecord.
// Pure function: no side effects, no time.Now(), no external calls.
// Ready here is scheduler readiness only; the mesh-aware override happens in
// the version reconciler once backend addresses are known.
func PodToRecord(pod *corev1.Pod) model.PodRecord {
	scheduled := isPodScheduled(pod)
	reason := pod.Status.Reason
	message := pod.Status.Message

	if !scheduled {
		// Surface why the pod could not be placed instead of the generic
		// status reason.
		if cond := getPodCondition(pod, corev1.PodScheduled); cond != nil {
			reason = cond.Reason
			message = cond.Message
		}
	}

	rec := model.PodRecord{
		Name:      pod.Name,
		IP:        pod.Status.PodIP,
		Host:      pod.Status.HostIP,
		Phase:     string(pod.Status.Phase),
		Reason:    reason,
		Message:   message,
		Scheduled: scheduled,
		Ready:     IsPodReady(pod),

		Containers: convertContainers(pod),

		CreateTimestamp: pod.CreationTimestamp.Unix(),

		GitSHA:    pod.Labels[LabelGitSHA],
		ConfigSHA: pod.Labels[LabelConfigSHA],
	}

	if pod.DeletionTimestamp != nil {
		ts := pod.DeletionTimestamp.Unix()
		rec.DeleteTimestamp = &ts
	}

	if len(pod.OwnerReferences) > 0 {
		owner := pod.OwnerReferences[0]
		rec.OwnerKind = owner.Kind
		rec.OwnerName = owner.Name
	}

	return rec
}

// IsPodReady reports whether the pod's Ready condition is True.
func IsPodReady(pod *corev1.Pod) bool {
	cond := getPodCondition(pod, corev1.PodReady)
	return cond != nil && cond.Status == corev1.ConditionTrue
}

func isPodScheduled(pod *corev1.Pod) bool {
	cond := getPodCondition(pod, corev1.PodScheduled)
	return cond != nil && cond.Status == corev1.ConditionTrue
}

func getPodCondition(pod *corev1.Pod, condType corev1.PodConditionType) *corev1.PodCondition {
	for i := range pod.Status.Conditions {
		if pod.Status.Conditions[i].Type == condType {
			return &pod.Status.Conditions[i]
		}
	}
	return nil
}

// convertContainers converts container statuses, matching each with its spec
// by name for the liveness-probe grace period.
func convertContainers(pod *corev1.Pod) []model.ContainerRecord {
	statuses := pod.Status.ContainerStatuses
	if len(statuses) == 0 {
		return nil
	}

	specByName := make(map[string]corev1.Container, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		specByName[c.Name] = c
	}

	out := make([]model.ContainerRecord, 0, len(statuses))
	for _, cs := range statuses {
		rec := model.ContainerRecord{
			Name:         cs.Name,
			RestartCount: cs.RestartCount,
		}

		applyState(&rec, cs.State)
		applyLastState(&rec, cs.LastTerminationState)

		if spec, ok := specByName[cs.Name]; ok && spec.LivenessProbe != nil {
			grace := spec.LivenessProbe.InitialDelaySeconds
			rec.HealthcheckGracePeriod = &grace
		}

		out = append(out, rec)
	}
	return out
}

// applyState maps the current container state. Each container has exactly one
// populated state at a time.
func applyState(rec *model.ContainerRecord, state corev1.ContainerState) {
	switch {
	case state.Running != nil:
		rec.State = "running"
		ts := state.Running.StartedAt.Unix()
		rec.StartTimestamp = &ts
	case state.Waiting != nil:
		rec.State = "waiting"
		rec.Reason = state.Waiting.Reason
		rec.Message = state.Waiting.Message
	case state.Terminated != nil:
		rec.State = "terminated"
		rec.Reason = state.Terminated.Reason
		rec.Message = state.Terminated.Message
		if !state.Terminated.StartedAt.IsZero() {
			ts := state.Terminated.StartedAt.Unix()
			rec.StartTimestamp = &ts
		}
	}
}

func applyLastState(rec *model.ContainerRecord, state corev1.ContainerState) {
	switch {
	case state.Running != nil:
		rec.LastState = "running"
	case state.Waiting != nil:
		rec.LastState = "waiting"
		rec.LastReason = state.Waiting.Reason
		rec.LastMessage = state.Waiting.Message
	case state.Terminated != nil:
		rec.LastState = "terminated"
		rec.LastReason = state.Terminated.Reason
		rec.LastMessage = state.Terminated.Message
		if !state.Terminated.StartedAt.IsZero() && !state.Terminated.FinishedAt.IsZero() {
			dur := state.Terminated.FinishedAt.Unix() - state.Terminated.StartedAt.Unix()
			rec.LastDuration = &dur
		}
	}
}
