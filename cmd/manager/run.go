package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/eea/citus-manager/internal/config"
	"github.com/eea/citus-manager/internal/db"
	"github.com/eea/citus-manager/internal/provision"
	"github.com/eea/citus-manager/internal/readiness"
	"github.com/eea/citus-manager/internal/reconciler"
	"github.com/eea/citus-manager/internal/status"
	"github.com/eea/citus-manager/internal/topology"
	"github.com/eea/citus-manager/internal/watcher"
)

func runCmd() *cobra.Command {
	var (
		statusAddr     string
		templateDir    string
		minimumWorkers int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the membership manager",
		Long: `Run the controller: watch Citus pods in the configured namespace and
reconcile the cluster's node registry against them.

Configuration comes from environment variables (NAMESPACE is required);
flags override individual settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("status-bind-address") {
				cfg.StatusAddr = statusAddr
			}
			if cmd.Flags().Changed("template-dir") {
				cfg.TemplateDir = templateDir
			}
			if cmd.Flags().Changed("minimum-workers") {
				cfg.MinimumWorkers = minimumWorkers
			}
			run(cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusAddr, "status-bind-address", ":5000", "The address the status endpoint binds to.")
	cmd.Flags().StringVar(&templateDir, "template-dir", "/etc/citus-config", "Directory holding the per-role provisioning templates.")
	cmd.Flags().IntVar(&minimumWorkers, "minimum-workers", 2, "Number of registered workers required before provisioning runs.")

	return cmd
}

func run(cfg *config.Config) {
	// Setup logger
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting citus-manager",
		zap.String("version", version),
		zap.String("namespace", cfg.Namespace),
		zap.Int("minimum_workers", cfg.MinimumWorkers),
	)

	restCfg := ctrl.GetConfigOrDie()
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		logger.Fatal("Failed to create clientset", zap.Error(err))
	}

	handler := db.NewHandler(cfg, logger)
	defer handler.Close()

	state := topology.NewState()
	gate := readiness.NewGate(clientset, cfg.Namespace, logger)
	prov := provision.New(cfg, handler, state, logger)
	rec := reconciler.New(cfg, state, gate, handler, prov, logger)
	w := watcher.New(clientset, cfg, rec, logger)
	statusServer := status.NewServer(state, cfg.StatusAddr, logger)

	ctx := ctrl.SetupSignalHandler()

	errCh := make(chan error, 2)
	go func() {
		errCh <- statusServer.Start(ctx)
	}()
	go func() {
		errCh <- w.Start(ctx)
	}()

	// Both goroutines return nil on context cancellation. Anything else is a
	// fatal handler or serve failure; the platform restarts the process and
	// the fresh watch replays current state.
	if err := <-errCh; err != nil {
		logger.Fatal("Controller failed", zap.Error(err))
	}
	<-errCh
	logger.Info("Shutdown complete")
}
