package main

import (
	"fmt"
	"time"

	"chatforms-backend/internal/config"
	"chatforms-backend/internal/services"

	"github.com/spf13/cobra"
)

var (
	tokenEmail string
	tokenName  string
	tokenTTL   time.Duration
)

// tokenCmd signs a creator token with the configured secret, for local
// development without the identity provider.
var tokenCmd = &cobra.Command{
	Use:   "token <identity-id>",
	Short: "Issue a development Bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := services.NewAuthService(cfg.JWTSecret).IssueToken(services.Identity{
			ID:    args[0],
			Email: tokenEmail,
			Name:  tokenName,
		}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "dev@example.com", "email claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "Developer", "name claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
