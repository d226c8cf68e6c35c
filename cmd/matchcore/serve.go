package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/config"
	"github.com/neurobridge/matchcore/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the inference gateway, the matching engine and the consent workflow, with a scheduled expiry sweep.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	app, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.close()

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	exportCfg, err := config.NewExportConfig()
	if err != nil {
		return err
	}

	// Scheduled expiry sweep.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		closed, err := app.workflow.SweepExpired(context.Background())
		if err != nil {
			app.log.Error("expiry sweep failed", zap.Error(err))
			return
		}
		if closed > 0 {
			app.log.Info("expiry sweep closed matches", zap.Int("count", closed))
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Deps{
		Port:     cfg.Port,
		Engine:   app.engine,
		Workflow: app.workflow,
		Gateway:  app.gateway,
		Matches:  app.matches,
		Audit:    app.auditLog,
		JWT:      server.NewJWTService(jwtCfg),
		Export:   exportCfg,
		Logger:   app.log,
	})
	return srv.Start()
}
