package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration values.
type Config struct {
	Cluster string // MESHSTAT_CLUSTER, the cluster this process runs against by default
	SOADir  string // MESHSTAT_SOA_DIR, root of the per-service config tree

	// Mesh admin endpoints.
	HAProxyPort         int    // MESHSTAT_HAPROXY_PORT, default: 3212
	HAProxyURLFormat    string // MESHSTAT_HAPROXY_URL_FORMAT, default: "http://{host}:{port}/;csv;norefresh"
	EnvoyAdminPort      int    // MESHSTAT_ENVOY_ADMIN_PORT, default: 9901
	EnvoyAdminURLFormat string // MESHSTAT_ENVOY_ADMIN_URL_FORMAT, default: "http://{host}:{port}/{endpoint}"

	// Fan-out and transport.
	BatchWorkers   int           // MESHSTAT_BATCH_WORKERS, default: 20
	RequestTimeout time.Duration // MESHSTAT_REQUEST_TIMEOUT, default: 30s (mesh admin HTTP only)

	// API daemon.
	APIPort        int  // MESHSTAT_API_PORT, default: 8080
	DebugEndpoints bool // MESHSTAT_DEBUG_ENDPOINTS, default: false; enables pprof on the API port

	// ClusterContexts maps cluster name to kubeconfig context for multi-cluster
	// fan-out. Clusters without an entry use the context of the same name.
	ClusterContexts map[string]string // MESHSTAT_CLUSTER_CONTEXTS, "cluster1=ctx1,cluster2=ctx2"
}

// Load reads configuration from the environment (after a best-effort .env
// load) and returns a Config with defaults applied for any unset values.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Cluster:             os.Getenv("MESHSTAT_CLUSTER"),
		SOADir:              envOrDefault("MESHSTAT_SOA_DIR", "/etc/meshstat/soa"),
		HAProxyPort:         parseInt("MESHSTAT_HAPROXY_PORT", 3212),
		HAProxyURLFormat:    envOrDefault("MESHSTAT_HAPROXY_URL_FORMAT", "http://{host}:{port}/;csv;norefresh"),
		EnvoyAdminPort:      parseInt("MESHSTAT_ENVOY_ADMIN_PORT", 9901),
		EnvoyAdminURLFormat: envOrDefault("MESHSTAT_ENVOY_ADMIN_URL_FORMAT", "http://{host}:{port}/{endpoint}"),
		BatchWorkers:        parseInt("MESHSTAT_BATCH_WORKERS", 20),
		RequestTimeout:      parseDuration("MESHSTAT_REQUEST_TIMEOUT", 30*time.Second),
		APIPort:             parseInt("MESHSTAT_API_PORT", 8080),
		DebugEndpoints:      parseBool("MESHSTAT_DEBUG_ENDPOINTS", false),
		ClusterContexts:     parseMap("MESHSTAT_CLUSTER_CONTEXTS"),
	}
}

// Validate checks the configuration for values that can never work.
func (c *Config) Validate() error {
	if c.BatchWorkers < 1 {
		return fmt.Errorf("batch workers must be >= 1, got %d", c.BatchWorkers)
	}
	if c.SOADir == "" {
		return fmt.Errorf("soa dir must not be empty")
	}
	return nil
}

// ContextForCluster resolves the kubeconfig context for a cluster name.
func (c *Config) ContextForCluster(cluster string) string {
	if ctx, ok := c.ClusterContexts[cluster]; ok {
		return ctx
	}
	return cluster
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to treating
// the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// parseMap parses "k1=v1,k2=v2" into a map. Malformed pairs are skipped.
func parseMap(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
