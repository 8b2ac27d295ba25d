package mesh

import (
	"sort"

	corev1 "k8s.io/api/core/v1"

	"github.com/meshstat/meshstat/internal/convert"
	"github.com/meshstat/meshstat/internal/errors"
)

// Location is one topology grouping (availability zone) with the hosts that
// can answer mesh admin queries for it. Hosts are sorted so the
// representative host is deterministic.
type Location struct {
	Name  string
	Hosts []string
}

// RepresentativeHost is the host queried for the location's backend set.
func (l Location) RepresentativeHost() string {
	if len(l.Hosts) == 0 {
		return ""
	}
	return l.Hosts[0]
}

// LocationsForPool groups the cluster's nodes by zone, filtered to the
// instance's resource pool. Nodes without a pool label belong to "default".
// Zero resolvable locations is a configuration error: expected counts cannot
// be distributed over nothing.
func LocationsForPool(nodes []corev1.Node, pool string) ([]Location, error) {
	hostsByZone := make(map[string][]string)
	for _, node := range nodes {
		nodePool := node.Labels[convert.LabelPool]
		if nodePool == "" {
			nodePool = "default"
		}
		if nodePool != pool {
			continue
		}

		zone := node.Labels[convert.LabelZone]
		if zone == "" {
			continue
		}
		host := node.Labels["kubernetes.io/hostname"]
		if host == "" {
			host = node.Name
		}
		hostsByZone[zone] = append(hostsByZone[zone], host)
	}

	if len(hostsByZone) == 0 {
		return nil, errors.New(errors.ErrNoMeshLocations, "mesh",
			"no mesh locations resolvable for pool %q", pool)
	}

	locations := make([]Location, 0, len(hostsByZone))
	for zone, hosts := range hostsByZone {
		sort.Strings(hosts)
		locations = append(locations, Location{Name: zone, Hosts: hosts})
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].Name < locations[j].Name })
	return locations, nil
}
