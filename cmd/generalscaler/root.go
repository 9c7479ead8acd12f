package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "generalscaler",
		Short: "Replica autoscaler driven by arbitrary metric sources",
		Long: `generalscaler reconciles Kubernetes Deployments against scaling specs:
it aggregates metrics from Prometheus, Redis and Pub/Sub, applies a
proportional or budget-constrained policy, and scales within cooldown
and rate limits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default ./config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newEvaluateCmd(),
		newTokenCmd(),
	)
	return root
}

// loadConfig reads and validates the config named by --config and applies
// its logging settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	return cfg, nil
}
