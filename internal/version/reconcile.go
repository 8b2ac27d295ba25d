// Package version reconciles scheduler replica groups against the pods that
// belong to them, producing the per-version view of the versioned snapshot
// shape.
package version

import (
	"sort"

	"github.com/meshstat/meshstat/pkg/model"
)

// AddressSet is the set of addresses currently registered in the mesh.
// A nil set means mesh membership is unknown and readiness is left untouched.
type AddressSet map[string]struct{}

// FilterActive drops replica groups that are provably inactive: declared
// replicas and ready replicas both zero. A group scaling to zero with live
// ready pods, or freshly created and not yet ready, stays visible.
func FilterActive(groups []model.ReplicaGroup) []model.ReplicaGroup {
	active := make([]model.ReplicaGroup, 0, len(groups))
	for _, g := range groups {
		if g.Replicas == 0 && g.ReadyReplicas == 0 {
			continue
		}
		active = append(active, g)
	}
	return active
}

// ForReplicaSets builds the version list for a replicaset-managed instance.
// Pods attach to the group named by their owner reference; a pod whose owner
// cannot be resolved to a known group is excluded from every version; the
// scheduler produces such pods transiently and we never invent a group for
// them. Versions are ordered newest first.
func ForReplicaSets(groups []model.ReplicaGroup, pods []model.PodRecord, backends AddressSet) []model.ReplicaVersion {
	active := FilterActive(groups)

	podsByOwner := make(map[string][]model.PodRecord)
	for _, pod := range pods {
		if pod.OwnerKind != "ReplicaSet" || pod.OwnerName == "" {
			continue
		}
		podsByOwner[pod.OwnerName] = append(podsByOwner[pod.OwnerName], pod)
	}

	versions := make([]model.ReplicaVersion, 0, len(active))
	for _, g := range active {
		versions = append(versions, model.ReplicaVersion{
			Name:            g.Name,
			Type:            "ReplicaSet",
			Replicas:        g.Replicas,
			ReadyReplicas:   g.ReadyReplicas,
			CreateTimestamp: g.CreateTimestamp,
			GitSHA:          g.GitSHA,
			ConfigSHA:       g.ConfigSHA,
			Pods:            applyMeshReadiness(podsByOwner[g.Name], backends),
		})
	}
	sortNewestFirst(versions)
	return versions
}

// ForControllerRevisions builds the version list for a revision-managed
// instance. Revisions carry no owner reference chain to pods, so grouping is
// by the (git sha, config sha) label pair directly; replica counts are
// derived from the member pods. Pods whose sha pair matches no revision are
// dropped.
func ForControllerRevisions(groups []model.ReplicaGroup, pods []model.PodRecord, backends AddressSet) []model.ReplicaVersion {
	groupByID := make(map[model.VersionIdentity]model.ReplicaGroup, len(groups))
	order := make([]model.VersionIdentity, 0, len(groups))
	for _, g := range groups {
		id := model.VersionIdentity{GitSHA: g.GitSHA, ConfigSHA: g.ConfigSHA}
		if _, seen := groupByID[id]; !seen {
			order = append(order, id)
		}
		groupByID[id] = g
	}

	podsByID := make(map[model.VersionIdentity][]model.PodRecord)
	for _, pod := range pods {
		id := model.VersionIdentity{GitSHA: pod.GitSHA, ConfigSHA: pod.ConfigSHA}
		podsByID[id] = append(podsByID[id], pod)
	}

	versions := make([]model.ReplicaVersion, 0, len(order))
	for _, id := range order {
		g := groupByID[id]
		members := applyMeshReadiness(podsByID[id], backends)

		ready := 0
		for _, pod := range members {
			if pod.Ready {
				ready++
			}
		}

		versions = append(versions, model.ReplicaVersion{
			Name:            g.Name,
			Type:            "ControllerRevision",
			Replicas:        int32(len(members)),
			ReadyReplicas:   int32(ready),
			CreateTimestamp: g.CreateTimestamp,
			GitSHA:          g.GitSHA,
			ConfigSHA:       g.ConfigSHA,
			Pods:            members,
		})
	}
	sortNewestFirst(versions)
	return versions
}

// applyMeshReadiness recomputes pod readiness against the mesh backend set:
// scheduler readiness alone is insufficient once a mesh is in use. With a nil
// set, readiness is left as the scheduler reported it.
func applyMeshReadiness(pods []model.PodRecord, backends AddressSet) []model.PodRecord {
	if pods == nil {
		return []model.PodRecord{}
	}
	if backends == nil {
		return pods
	}
	out := make([]model.PodRecord, len(pods))
	for i, pod := range pods {
		if pod.Ready {
			_, registered := backends[pod.IP]
			pod.Ready = registered
		}
		out[i] = pod
	}
	return out
}

func sortNewestFirst(versions []model.ReplicaVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].CreateTimestamp > versions[j].CreateTimestamp
	})
}

// ActiveIdentities collects the distinct version identities present across
// the app, its pods, and its active replica groups. The count of identities
// is the legacy shape's app_count (more than one means a bounce in progress).
func ActiveIdentities(app *model.AppRecord, pods []model.PodRecord, groups []model.ReplicaGroup) []model.VersionIdentity {
	seen := make(map[model.VersionIdentity]struct{})
	ordered := make([]model.VersionIdentity, 0, 1+len(groups))

	add := func(id model.VersionIdentity) {
		if id.GitSHA == "" && id.ConfigSHA == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	if app != nil {
		add(model.VersionIdentity{GitSHA: app.GitSHA, ConfigSHA: app.ConfigSHA})
	}
	for _, pod := range pods {
		add(model.VersionIdentity{GitSHA: pod.GitSHA, ConfigSHA: pod.ConfigSHA})
	}
	for _, g := range groups {
		add(model.VersionIdentity{GitSHA: g.GitSHA, ConfigSHA: g.ConfigSHA})
	}
	return ordered
}
