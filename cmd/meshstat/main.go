package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/meshstat/meshstat/internal/batch"
	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/fetch"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/observability"
	"github.com/meshstat/meshstat/internal/status"
)

// Fatal argument/config errors exit with this code before any fetch begins,
// distinct from the per-target failure code.
const exitUsage = 2

var (
	flagService      string
	flagInstances    []string
	flagClusters     []string
	flagInstanceType string
	flagVerbose      int
	flagSOADir       string
	flagHAProxy      bool
	flagEnvoy        bool
	flagUseV2        bool
)

var rootCmd = &cobra.Command{
	Use:           "meshstat",
	Short:         "Aggregate the runtime health of service instances across clusters and the mesh",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report scheduler, mesh, and autoscaling status per instance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd.Context(), reportInstanceStatus)
	},
}

var meshStatusCmd = &cobra.Command{
	Use:   "mesh-status",
	Short: "Report how the mesh routes traffic to each instance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd.Context(), reportMeshStatus)
	},
}

var setStateCmd = &cobra.Command{
	Use:   "set-state <service> <instance> <state>",
	Short: "Set the desired state of a controller-managed instance",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetState(cmd.Context(), args[0], args[1], args[2])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagService, "service", "s", "", "service to query")
	rootCmd.PersistentFlags().StringSliceVarP(&flagInstances, "instances", "i", nil, "instances to query (default: all configured)")
	rootCmd.PersistentFlags().StringSliceVarP(&flagClusters, "clusters", "c", nil, "clusters to query")
	rootCmd.PersistentFlags().StringVarP(&flagInstanceType, "instance-type", "t", "kubernetes", "instance type")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "print per-pod / per-backend detail")
	rootCmd.PersistentFlags().StringVarP(&flagSOADir, "soa-dir", "d", "", "override the service config directory")

	statusCmd.Flags().BoolVar(&flagHAProxy, "haproxy", false, "include haproxy mesh status")
	statusCmd.Flags().BoolVar(&flagEnvoy, "envoy", true, "include envoy mesh status")
	statusCmd.Flags().BoolVar(&flagUseV2, "new", false, "use the versioned status shape")

	rootCmd.AddCommand(statusCmd, meshStatusCmd, setStateCmd)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		if code, ok := exitCodeOf(err); ok {
			os.Exit(code)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitUsage)
	}
}

// exitError carries a batch exit code through cobra's error path.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func exitCodeOf(err error) (int, bool) {
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code, true
	}
	return 0, false
}

// runBatch fans the given reporter out over the requested
// cluster/service/instance selections.
func runBatch(ctx context.Context, report reporterFunc) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitError{exitUsage}
	}
	if flagSOADir != "" {
		cfg.SOADir = flagSOADir
	}
	if flagService == "" {
		fmt.Fprintln(os.Stderr, "--service is required")
		return exitError{exitUsage}
	}

	clusters := flagClusters
	if len(clusters) == 0 {
		if cfg.Cluster == "" {
			fmt.Fprintln(os.Stderr, "no clusters selected: pass --clusters or set MESHSTAT_CLUSTER")
			return exitError{exitUsage}
		}
		clusters = []string{cfg.Cluster}
	}

	instances := map[string]string{}
	for _, name := range flagInstances {
		instances[name] = flagInstanceType
	}
	if len(instances) == 0 {
		fmt.Fprintln(os.Stderr, "--instances is required")
		return exitError{exitUsage}
	}

	targets := make([]batch.Target, 0, len(clusters))
	for _, cluster := range clusters {
		targets = append(targets, batch.Target{
			Cluster:   cluster,
			Service:   flagService,
			Instances: instances,
		})
	}

	metrics := observability.NewMetrics()
	engines := newEngineCache(&cfg, metrics)

	runner := &batch.Runner{Workers: cfg.BatchWorkers, Metrics: metrics}
	exitCode, results := runner.Run(ctx, targets, func(ctx context.Context, target batch.Target) batch.Result {
		engine, err := engines.forCluster(target.Cluster)
		if err != nil {
			return batch.Result{
				Cluster:  target.Cluster,
				Service:  target.Service,
				ExitCode: batch.ExitFailed,
				Output:   []string{fmt.Sprintf("could not build a client for cluster %s: %v", target.Cluster, err)},
			}
		}
		return report(ctx, engine, target)
	})

	for _, res := range results {
		fmt.Println(strings.Join(res.Output, "\n"))
	}
	if exitCode != batch.ExitOK {
		return exitError{exitCode}
	}
	return nil
}

func runSetState(ctx context.Context, service, instance, state string) error {
	cfg := config.Load()
	if flagSOADir != "" {
		cfg.SOADir = flagSOADir
	}
	cluster := cfg.Cluster
	if len(flagClusters) == 1 {
		cluster = flagClusters[0]
	}
	if cluster == "" {
		fmt.Fprintln(os.Stderr, "set-state needs exactly one cluster")
		return exitError{exitUsage}
	}

	instanceType, err := status.ParseInstanceType(flagInstanceType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitError{exitUsage}
	}

	engine, err := newEngineCache(&cfg, observability.NewMetrics()).forCluster(cluster)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitError{batch.ExitFailed}
	}
	if err := engine.SetDesiredState(ctx, status.Request{
		Service:  service,
		Instance: instance,
		Type:     instanceType,
	}, state); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitError{batch.ExitFailed}
	}
	fmt.Printf("%s.%s in %s: desired state set to %s\n", service, instance, cluster, state)
	return nil
}

// engineCache builds one status engine per cluster, lazily. The CLI is
// single-shot; engines are reused across targets of the same batch only.
// forCluster may be called from concurrent batch workers.
type engineCache struct {
	cfg     *config.Config
	metrics *observability.Metrics

	mu      sync.Mutex
	engines map[string]*status.Engine
}

func newEngineCache(cfg *config.Config, metrics *observability.Metrics) *engineCache {
	return &engineCache{cfg: cfg, metrics: metrics, engines: map[string]*status.Engine{}}
}

func (c *engineCache) forCluster(cluster string) (*status.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if engine, ok := c.engines[cluster]; ok {
		return engine, nil
	}

	restCfg, err := buildKubeConfig(c.cfg.ContextForCluster(cluster))
	if err != nil {
		return nil, err
	}
	kubeClient, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes client: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building dynamic client: %w", err)
	}

	engine := status.NewEngine(status.Settings{
		Cluster: cluster,
		SOADir:  c.cfg.SOADir,
		Client:  fetch.NewClient(kubeClient, dynamicClient),
		HAProxy: mesh.NewHAProxySource(c.cfg.HAProxyPort, c.cfg.HAProxyURLFormat, c.cfg.RequestTimeout),
		Envoy:   mesh.NewEnvoySource(c.cfg.EnvoyAdminPort, c.cfg.EnvoyAdminURLFormat, c.cfg.RequestTimeout),
	}, c.metrics, slog.Default())

	c.engines[cluster] = engine
	return engine, nil
}

// buildKubeConfig creates a Kubernetes REST config for one kubeconfig
// context. It tries in-cluster config first when no context is named, then
// falls back to kubeconfig (from $KUBECONFIG or the default ~/.kube/config).
func buildKubeConfig(kubeContext string) (*rest.Config, error) {
	if kubeContext == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config for context %q: %w", kubeContext, err)
	}
	return cfg, nil
}
