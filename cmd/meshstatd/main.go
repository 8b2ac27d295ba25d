package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/meshstat/meshstat/internal/api"
	"github.com/meshstat/meshstat/internal/config"
	"github.com/meshstat/meshstat/internal/fetch"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/observability"
	"github.com/meshstat/meshstat/internal/status"
)

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	slog.Info("meshstatd starting",
		"cluster", cfg.Cluster,
		"soa_dir", cfg.SOADir,
		"api_port", cfg.APIPort,
	)

	// 3. Build Kubernetes clients.
	restCfg := buildKubeConfig()
	kubeClient := kubernetes.NewForConfigOrDie(restCfg)
	dynamicClient := dynamic.NewForConfigOrDie(restCfg)

	// 4. Build the status engine for this cluster.
	metrics := observability.NewMetrics()
	engine := status.NewEngine(status.Settings{
		Cluster: cfg.Cluster,
		SOADir:  cfg.SOADir,
		Client:  fetch.NewClient(kubeClient, dynamicClient),
		HAProxy: mesh.NewHAProxySource(cfg.HAProxyPort, cfg.HAProxyURLFormat, cfg.RequestTimeout),
		Envoy:   mesh.NewEnvoySource(cfg.EnvoyAdminPort, cfg.EnvoyAdminURLFormat, cfg.RequestTimeout),
	}, metrics, slog.Default())

	// 5. Start the status API server.
	srv := api.NewServer(cfg.APIPort, engine, metrics, slog.Default(), cfg.DebugEndpoints)
	if err := srv.Start(); err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	slog.Info("api server listening", "addr", srv.Addr())

	// 6. Block until shutdown is requested.
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("api server shutdown error", "error", err)
	}

	slog.Info("meshstatd stopped")
}

// buildKubeConfig creates a Kubernetes REST config.
// It tries in-cluster config first, then falls back to kubeconfig file
// (from $KUBECONFIG or the default ~/.kube/config).
func buildKubeConfig() *rest.Config {
	cfg, err := rest.InClusterConfig()
	if err == nil {
		slog.Info("using in-cluster kubernetes config")
		return cfg
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		kubeconfig = clientcmd.RecommendedHomeFile
	}

	cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		slog.Error("failed to build kubernetes config", "error", err)
		os.Exit(1)
	}
	slog.Info("using kubeconfig file", "path", kubeconfig)
	return cfg
}
