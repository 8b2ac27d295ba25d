package model

// MeshStatus is the mesh-side view of one service registration: where the
// mesh serves it and how many backends are up in each location.
type MeshStatus struct {
	Registration                string         `json:"registration"`
	ExpectedBackendsPerLocation int            `json:"expected_backends_per_location"`
	Locations                   []MeshLocation `json:"locations"`

	// Error carries a contained transport/configuration failure for this
	// mesh flavor; the rest of the instance status is unaffected.
	Error string `json:"error_message,omitempty"`
}

// MeshLocation is one network location (availability zone) serving the
// registration. ExpectedBackendsPerLocation on the parent status is integer
// division of the declared instance count by the location count; the sum over
// locations may be less than the total and is not corrected.
type MeshLocation struct {
	Name                 string        `json:"name"`
	RunningBackendsCount int           `json:"running_backends_count"`
	Backends             []MeshBackend `json:"backends,omitempty"`
}

// BackendHealth is the normalized health state reported by the mesh.
type BackendHealth string

const (
	BackendUp        BackendHealth = "UP"
	BackendDown      BackendHealth = "DOWN"
	BackendMaint     BackendHealth = "MAINT"
	BackendHealthy   BackendHealth = "HEALTHY"
	BackendDegraded  BackendHealth = "DEGRADED"
	BackendUnhealthy BackendHealth = "UNHEALTHY"
)

// Healthy reports whether the state counts as a running backend.
func (h BackendHealth) Healthy() bool {
	return h == BackendUp || h == BackendHealthy
}

// MeshBackend is one mesh-reported endpoint. Unmatched backends (no known pod
// at that address) are retained with HasAssociatedPod=false, never discarded.
type MeshBackend struct {
	Address  string        `json:"address"`
	Port     int32         `json:"port"`
	Hostname string        `json:"hostname,omitempty"`
	Status   BackendHealth `json:"status"`

	CheckStatus   string `json:"check_status,omitempty"`
	CheckCode     string `json:"check_code,omitempty"`
	CheckDuration string `json:"check_duration,omitempty"`
	LastChange    *int64 `json:"last_change,omitempty"` // seconds since last state change
	Weight        *int32 `json:"weight,omitempty"`

	HasAssociatedPod    bool `json:"has_associated_pod"`
	ProxiedThroughCache bool `json:"proxied_through_cache,omitempty"`
}
