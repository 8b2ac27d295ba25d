package convert

// Labels stamped on every object the deploy pipeline creates. The engine only
// reads them; it never writes cluster state.
const (
	LabelService   = "meshstat.dev/service"
	LabelInstance  = "meshstat.dev/instance"
	LabelGitSHA    = "meshstat.dev/git-sha"
	LabelConfigSHA = "meshstat.dev/config-sha"

	// LabelPool is a node label naming the resource pool the node serves.
	LabelPool = "meshstat.dev/pool"

	// LabelZone is the standard topology zone label, used as the mesh
	// location key.
	LabelZone = "topology.kubernetes.io/zone"
)
