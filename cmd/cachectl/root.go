package main

import (
	"github.com/agentuity/storefront-cache/cache"
	"github.com/agentuity/storefront-cache/config"
	"github.com/agentuity/storefront-cache/env"
	"github.com/agentuity/storefront-cache/logger"
	"github.com/agentuity/storefront-cache/telemetry"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and maintain the storefront cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file (or "+env.ConfigEnv+")")
	root.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error or none")

	root.AddCommand(
		newGetCommand(),
		newSetCommand(),
		newDeleteCommand(),
		newStatsCommand(),
		newKeysCommand(),
		newClearCommand(),
		newClearTenantCommand(),
		newInvalidateCommand(),
		newSweepCommand(),
		newExportCommand(),
		newRunCommand(),
		newConfigCommand(),
	)
	return root
}

type app struct {
	cfg      *config.Config
	log      logger.Logger
	store    *cache.Store
	shutdown telemetry.ShutdownFunc
}

func loadConfig(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(env.ConfigPath(cmd))
	if err != nil {
		return nil, nil, err
	}
	if level, ok := env.LogLevel(cmd); ok {
		return cfg, logger.New(cfg.Log.Format, level), nil
	}
	return cfg, cfg.Logger(), nil
}

// openApp loads the configuration and opens the store it describes. The
// caller must Close the returned app.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	a := &app{cfg: cfg, log: log, shutdown: func() {}}
	opts := []cache.Option{}
	if t := cfg.Telemetry; t.OTLPURL != "" {
		tp, shutdownTraces, err := telemetry.New(ctx, t.OTLPURL, t.Token.Reveal(), t.ServiceName, log)
		if err != nil {
			return nil, err
		}
		otelLog, shutdownLogs, err := telemetry.NewLogger(ctx, t.OTLPURL, t.Token.Reveal(), t.ServiceName, t.Level(), log)
		if err != nil {
			shutdownTraces()
			return nil, err
		}
		a.shutdown = func() {
			shutdownTraces()
			shutdownLogs()
		}
		a.log = log.Stack(otelLog)
		opts = append(opts, cache.WithTracerProvider(tp))
	}

	storage, err := cfg.OpenStorage(ctx)
	if err != nil {
		a.shutdown()
		return nil, errors.Wrap(err, "open storage")
	}
	store, err := cache.New(ctx, append(cfg.StoreOptions(storage, a.log), opts...)...)
	if err != nil {
		if storage != nil {
			storage.Close()
		}
		a.shutdown()
		return nil, err
	}
	a.store = store
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close store: %s", err)
	}
	a.shutdown()
}

// withApp runs fn against an open store and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
