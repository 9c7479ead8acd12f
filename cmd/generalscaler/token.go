package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/generalscaler/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		subject  string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the mutating API routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if duration <= 0 {
				duration = cfg.API.JWTDuration
			}

			svc := auth.NewService(cfg.API.JWTSecret, duration, auth.WithIssuer(cfg.API.JWTIssuer))
			token, expiresAt, err := svc.GenerateToken(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&duration, "duration", 0, "token lifetime (default api.jwt_duration)")
	return cmd
}
