package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurobridge/matchcore/internal/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire matches past their response deadline",
	Long:  `Run one expiry sweep: every non-terminal match past its deadline is moved to EXPIRED and audited. Useful from an external scheduler instead of the serve command's built-in cron.`,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for a standalone sweep")
	}

	app, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.close()

	closed, err := app.workflow.SweepExpired(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Expired %d match(es)\n", closed)
	return nil
}
