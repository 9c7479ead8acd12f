package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OldStager01/generalscaler/internal/reconcile"
	"github.com/OldStager01/generalscaler/internal/safety"
	"github.com/OldStager01/generalscaler/internal/sources"
	"github.com/OldStager01/generalscaler/internal/workload"
	"github.com/OldStager01/generalscaler/pkg/models"
)

func newEvaluateCmd() *cobra.Command {
	var (
		specPath string
		target   string
		replicas int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compute one scaling decision for a spec without writing replicas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tgt, err := models.ParseTarget(target)
			if err != nil {
				return err
			}
			spec, err := readSpec(specPath)
			if err != nil {
				return err
			}

			registry := sources.NewRegistry(cfg.Sources.ToSourcesConfig())
			defer registry.Close()

			w := workload.NewMemory()
			w.Set(tgt, replicas)
			engine := reconcile.NewEngine(w, safety.NewGovernor(), registry, reconcile.WithDryRun())

			ctx, cancel := withTimeout(cmd, cfg.Reconcile.Timeout)
			defer cancel()

			d := engine.Reconcile(ctx, tgt, spec)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(d); err != nil {
				return err
			}
			if d.Failed() {
				return fmt.Errorf("evaluation failed (%s): %w", d.FailureKind, d.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "f", "", "scaling spec file (yaml or json)")
	cmd.Flags().StringVar(&target, "target", "default/evaluate", "target as namespace/name")
	cmd.Flags().IntVar(&replicas, "replicas", 1, "current replica count")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func readSpec(path string) (models.ScalingSpec, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return models.ScalingSpec{}, fmt.Errorf("failed to read spec: %w", err)
	}

	var spec models.ScalingSpec
	if err := v.Unmarshal(&spec); err != nil {
		return models.ScalingSpec{}, fmt.Errorf("failed to decode spec: %w", err)
	}
	return spec, nil
}
