package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gdg-garage/shuttle-planner/internal/database"
	"github.com/gdg-garage/shuttle-planner/internal/models"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the store schema and add missing catalog shuttles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeStore, err := database.OpenStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		added, err := database.SeedShuttles(ctx, s, models.DefaultCatalog())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d shuttle(s)\n", added)
		return nil
	},
}
