package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdg-garage/shuttle-planner/internal/auth"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Mint a bearer token for the admin registration listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.NewAdminAuth(cfg.AdminSecret).GenerateToken(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	adminTokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "token subject")
	adminTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.TokenDuration, "token lifetime")
}
