package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"genesim/internal/blob"
	"genesim/internal/config"
	"genesim/internal/core"
	"genesim/pkg/domain"
)

// Flag keys, also the viper keys. Environment variables are the upper-cased
// key with a GENESIM_ prefix and dashes turned into underscores.
const (
	flagConfig      = "config"
	flagSeed        = "seed"
	flagCycles      = "cycles"
	flagMode        = "mode"
	flagStore       = "store"
	flagSQLitePath  = "sqlite-path"
	flagPostgresDSN = "postgres-dsn"
	flagExport      = "export"
	flagExportRoot  = "export-root"
	flagMetricsAddr = "metrics-addr"
)

// app carries the settings shared by every subcommand.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	return a.command()
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "genesim",
		Short:         "Population genetics simulator for dog breeding programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.String(flagConfig, "", "YAML configuration file merged over the embedded defaults")
	pf.Uint64(flagSeed, 0, "random seed, overrides the configured seed")
	pf.Int(flagCycles, 0, "run length in cycles, overrides the configured years")
	pf.String(flagMode, "", "output mode: quiet, monitor or debug")
	pf.String(flagStore, "", "persistence driver: memory, sqlite or postgres (default sqlite)")
	pf.String(flagSQLitePath, "", "sqlite database file (default genesim.db)")
	pf.String(flagPostgresDSN, "", "PostgreSQL connection string")
	pf.String(flagExport, "", "blob driver that receives run artifacts: fs, s3 or memory; empty disables export")
	pf.String(flagExportRoot, "", "root directory for the fs export driver")
	pf.String(flagMetricsAddr, "", "serve Prometheus metrics on this address while running")

	a.v.SetEnvPrefix("GENESIM")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(pf); err != nil {
		panic(fmt.Sprintf("binding flags: %v", err))
	}

	root.AddCommand(
		a.runCommand(),
		a.validateCommand(),
		a.batchCommand(),
		a.exportCommand(),
	)
	return root
}

// loadConfig reads the configuration file and applies flag and environment
// overrides. The result is validated again after the overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.v.GetString(flagConfig))
	if err != nil {
		return nil, err
	}
	if a.v.IsSet(flagSeed) {
		cfg.Seed = a.v.GetUint64(flagSeed)
	}
	if a.v.IsSet(flagMode) {
		cfg.Mode = domain.RunMode(strings.ToLower(a.v.GetString(flagMode)))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// simulation converts cfg and applies the cycle override.
func (a *app) simulation(cfg *config.Config) (domain.SimulationConfig, error) {
	sim := cfg.ToSimulation()
	if a.v.IsSet(flagCycles) {
		n := a.v.GetInt(flagCycles)
		if n < 1 {
			return sim, &config.ValidationError{Field: flagCycles, Msg: fmt.Sprintf("must be at least 1, got %d", n)}
		}
		sim.Cycles = n
	}
	return sim, nil
}

// storageConfig layers flags over the GENESIM_STORAGE_* environment.
func (a *app) storageConfig() core.StorageConfig {
	sc := core.StorageConfigFromEnv()
	if s := a.v.GetString(flagStore); s != "" {
		sc.Driver = core.StorageDriver(strings.ToLower(s))
	}
	if s := a.v.GetString(flagSQLitePath); s != "" {
		sc.SQLitePath = s
	}
	if s := a.v.GetString(flagPostgresDSN); s != "" {
		sc.PostgresDSN = s
	}
	return sc
}

func (a *app) openStore(ctx context.Context) (core.PersistentStore, error) {
	store, err := core.OpenStore(ctx, a.storageConfig())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}

// exportStore returns nil when export is disabled.
func (a *app) exportStore(ctx context.Context) (blob.Store, error) {
	driver := a.v.GetString(flagExport)
	if driver == "" {
		return nil, nil
	}
	store, err := blob.OpenDriver(ctx, blob.Driver(strings.ToLower(driver)), a.v.GetString(flagExportRoot))
	if err != nil {
		return nil, fmt.Errorf("opening export store: %w", err)
	}
	return store, nil
}

// logger writes text logs to stderr; debug mode lowers the level.
func (a *app) logger(mode domain.RunMode) *slog.Logger {
	level := slog.LevelInfo
	if mode == domain.ModeDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}
