package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/api"
	"github.com/jonathan/content-studio/internal/apikeys"
	"github.com/jonathan/content-studio/internal/config"
	"github.com/jonathan/content-studio/internal/history"
	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/observability"
	"github.com/jonathan/content-studio/internal/storage"
)

// app holds what every subcommand needs once flags are parsed
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logger  zerolog.Logger
	out     io.Writer
	printer *observability.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "studio",
		Short: "Content Studio generation console",
		Long: "Content Studio drives the AI content generation service: it starts generation runs, " +
			"follows their progress stream, and keeps a local history of runs.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a JSON or YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newGenerateCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newKeysCmd(a),
		newPresetsCmd(a),
		newServeCmd(a),
		newHashPasswordCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.printer = observability.NewPrinter(a.out)
	a.logger = logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cmd.ErrOrStderr(),
		Service: "studio",
	})
	return nil
}

func (a *app) client() (*api.Client, error) {
	client, err := api.NewClient(api.Config{
		BaseURL: a.cfg.APIURL,
		APIKey:  a.cfg.APIKey,
		Timeout: a.cfg.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

func (a *app) openKV(ctx context.Context) (storage.KV, error) {
	kv, err := storage.Open(ctx, a.cfg.StorageOptions(), logging.WithComponent(a.logger, "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", a.cfg.History.Backend, err)
	}
	return kv, nil
}

// openHistory opens the history store; the returned func closes its storage
func (a *app) openHistory(ctx context.Context) (*history.Store, func(), error) {
	kv, err := a.openKV(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := history.New(kv,
		history.WithCapacity(a.cfg.History.Capacity),
		history.WithLogger(logging.WithComponent(a.logger, "history")),
	)
	return store, a.closer(kv), nil
}

func (a *app) openKeys(ctx context.Context) (*apikeys.Store, func(), error) {
	client, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	kv, err := a.openKV(ctx)
	if err != nil {
		return nil, nil, err
	}
	return apikeys.New(kv, client, logging.WithComponent(a.logger, "apikeys")), a.closer(kv), nil
}

func (a *app) closer(kv storage.KV) func() {
	return func() {
		if err := kv.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close storage")
		}
	}
}
