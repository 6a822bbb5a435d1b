package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/content-pipeline/internal/auth"
)

func newTokenCmd(d deps) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an API started with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := d.loadConfig()
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			tok, err := auth.SignJWT(subject, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "contentctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
