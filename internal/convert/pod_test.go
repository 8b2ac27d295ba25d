package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestPodToRecord(t *testing.T) {
	created := metav1.NewTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:              "web-main-abc-1",
			CreationTimestamp: created,
			Labels: map[string]string{
				LabelGitSHA:    "abc123",
				LabelConfigSHA: "conf1",
			},
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "ReplicaSet", Name: "web-main-abc"},
			},
		},
		Status: corev1.PodStatus{
			Phase:  corev1.PodRunning,
			PodIP:  "10.0.0.1",
			HostIP: "192.168.0.1",
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodScheduled, Status: corev1.ConditionTrue},
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
		},
	}

	rec := PodToRecord(pod)
	assert.Equal(t, "web-main-abc-1", rec.Name)
	assert.Equal(t, "10.0.0.1", rec.IP)
	assert.Equal(t, "192.168.0.1", rec.Host)
	assert.Equal(t, "Running", rec.Phase)
	assert.True(t, rec.Scheduled)
	assert.True(t, rec.Ready)
	assert.Equal(t, created.Unix(), rec.CreateTimestamp)
	assert.Nil(t, rec.DeleteTimestamp)
	assert.Equal(t, "abc123", rec.GitSHA)
	assert.Equal(t, "conf1", rec.ConfigSHA)
	assert.Equal(t, "ReplicaSet", rec.OwnerKind)
	assert.Equal(t, "web-main-abc", rec.OwnerName)
}

func TestPodToRecord_UnscheduledReason(t *testing.T) {
	pod := &corev1.Pod{
		Status: corev1.PodStatus{
			Phase:  corev1.PodPending,
			Reason: "SomeGenericReason",
			Conditions: []corev1.PodCondition{
				{
					Type:    corev1.PodScheduled,
					Status:  corev1.ConditionFalse,
					Reason:  "Unschedulable",
					Message: "0/5 nodes are available",
				},
			},
		},
	}

	rec := PodToRecord(pod)
	assert.False(t, rec.Scheduled)
	// The placement failure wins over the generic status reason.
	assert.Equal(t, "Unschedulable", rec.Reason)
	assert.Equal(t, "0/5 nodes are available", rec.Message)
}

func TestPodToRecord_DeletionTimestamp(t *testing.T) {
	deleted := metav1.NewTime(time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC))
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{DeletionTimestamp: &deleted},
	}

	rec := PodToRecord(pod)
	require.NotNil(t, rec.DeleteTimestamp)
	assert.Equal(t, deleted.Unix(), *rec.DeleteTimestamp)
}

func TestPodToRecord_Containers(t *testing.T) {
	started := metav1.NewTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	finished := metav1.NewTime(started.Add(90 * time.Second))
	pod := &corev1.Pod{
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Name: "web",
					LivenessProbe: &corev1.Probe{
						InitialDelaySeconds: 30,
					},
				},
			},
		},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{
					Name:         "web",
					RestartCount: 2,
					State: corev1.ContainerState{
						Running: &corev1.ContainerStateRunning{StartedAt: started},
					},
					LastTerminationState: corev1.ContainerState{
						Terminated: &corev1.ContainerStateTerminated{
							Reason:     "OOMKilled",
							StartedAt:  started,
							FinishedAt: finished,
						},
					},
				},
				{
					Name: "sidecar",
					State: corev1.ContainerState{
						Waiting: &corev1.ContainerStateWaiting{
							Reason:  "CrashLoopBackOff",
							Message: "back-off 5m",
						},
					},
				},
			},
		},
	}

	rec := PodToRecord(pod)
	require.Len(t, rec.Containers, 2)

	web := rec.Containers[0]
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, int32(2), web.RestartCount)
	assert.Equal(t, "running", web.State)
	require.NotNil(t, web.StartTimestamp)
	assert.Equal(t, started.Unix(), *web.StartTimestamp)
	assert.Equal(t, "terminated", web.LastState)
	assert.Equal(t, "OOMKilled", web.LastReason)
	require.NotNil(t, web.LastDuration)
	assert.Equal(t, int64(90), *web.LastDuration)
	require.NotNil(t, web.HealthcheckGracePeriod)
	assert.Equal(t, int32(30), *web.HealthcheckGracePeriod)

	sidecar := rec.Containers[1]
	assert.Equal(t, "waiting", sidecar.State)
	assert.Equal(t, "CrashLoopBackOff", sidecar.Reason)
	assert.Equal(t, "back-off 5m", sidecar.Message)
	assert.Nil(t, sidecar.HealthcheckGracePeriod)
}

func TestIsPodReady(t *testing.T) {
	ready := &corev1.Pod{Status: corev1.PodStatus{
		Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
	}}
	notReady := &corev1.Pod{Status: corev1.PodStatus{
		Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionFalse}},
	}}
	noCondition := &corev1.Pod{}

	assert.True(t, IsPodReady(ready))
	assert.False(t, IsPodReady(notReady))
	assert.False(t, IsPodReady(noCondition))
}
