package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/apikeys"
	"github.com/jonathan/content-studio/internal/config"
	"github.com/jonathan/content-studio/internal/history"
	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/observability"
	"github.com/jonathan/content-studio/internal/server"
	"github.com/jonathan/content-studio/internal/server/ratelimit"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the console HTTP server",
		Long: `Start the HTTP server behind the browser console. It relays generation progress
as Server-Sent Events and exposes the history and API key endpoints.

Requires JWT_SECRET, plus STUDIO_ADMIN_EMAIL and STUDIO_ADMIN_PASSWORD_HASH for login
(see "studio hash-password").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.runServe(cmd)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}
	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return fmt.Errorf("failed to create password config: %w", err)
	}
	if a.cfg.Server.AdminEmail == "" || a.cfg.Server.AdminPasswordHash == "" {
		a.logger.Warn().Msg("no admin credentials configured; login is disabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := a.client()
	if err != nil {
		return err
	}
	kv, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	defer a.closer(kv)()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(server.Config{
		Port:              a.cfg.Server.Port,
		AllowedOrigins:    a.cfg.Server.AllowedOrigins,
		AdminEmail:        a.cfg.Server.AdminEmail,
		AdminPasswordHash: a.cfg.Server.AdminPasswordHash,
		JWT:               jwtConfig,
		Password:          passwordConfig,
		RateLimit:         ratelimit.LoadConfig(),
		RequestDefaults:   a.cfg.ApplyDefaults,
	}, server.Deps{
		Upstream: client,
		History: history.New(kv,
			history.WithCapacity(a.cfg.History.Capacity),
			history.WithLogger(logging.WithComponent(a.logger, "history")),
		),
		APIKeys:  apikeys.New(kv, client, logging.WithComponent(a.logger, "apikeys")),
		Metrics:  observability.NewMetrics(registry),
		Gatherer: registry,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
