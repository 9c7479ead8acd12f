package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := database.New(cfg.Database.ToDBConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			timeout := cfg.Database.MigrationTimeout
			if timeout <= 0 {
				timeout = 2 * time.Minute
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			applied, err := database.NewMigrator(db).Run(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Infof("Migrations completed: %d applied", len(applied))
			return nil
		},
	}
}
