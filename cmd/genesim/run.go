package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"genesim/internal/blob"
	"genesim/internal/config"
	"genesim/internal/core"
	"genesim/internal/report"
	"genesim/pkg/domain"
)

// outcome is one finished run and the artifacts published for it.
type outcome struct {
	Result    core.RunResult
	Seed      uint64
	Artifacts []blob.Object
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		Long: `Run one simulation with the effective configuration.

The run is recorded in the configured store. In monitor mode a progress
line is printed per cycle; debug mode adds debug logs and one JSON trace
line per phase on stderr. With --export the run's statistics, summary and
configuration are published under runs/<run-key>/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	sim, err := a.simulation(cfg)
	if err != nil {
		return err
	}
	configYAML, err := cfg.YAML()
	if err != nil {
		return err
	}
	logger := a.logger(cfg.Mode)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	exports, err := a.exportStore(ctx)
	if err != nil {
		return err
	}

	opts := []core.Option{core.WithLogger(core.NewSlogLogger(logger))}
	var timings *core.ExpvarMetricsRecorder
	if addr := a.v.GetString(flagMetricsAddr); addr != "" {
		ms, err := startMetricsServer(addr, logger)
		if err != nil {
			return err
		}
		defer func() { _ = ms.Close() }()
		opts = append(opts, core.WithMetricsRecorder(ms.recorder))
	} else if cfg.Mode == domain.ModeDebug {
		timings = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(timings))
	}
	if cfg.Mode == domain.ModeDebug {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	var monitor *report.Monitor
	if cfg.Mode == domain.ModeMonitor {
		monitor = report.NewMonitor(a.stdout)
		opts = append(opts, core.WithCycleObserver(monitor.Observe))
	}

	out, err := execute(ctx, store, exports, sim, configYAML, opts...)
	if err != nil {
		return err
	}
	if monitor != nil {
		if err := monitor.Err(); err != nil {
			return fmt.Errorf("writing monitor output: %w", err)
		}
	}
	if timings != nil {
		snap := timings.Snapshot()
		for _, op := range slices.Sorted(maps.Keys(snap.Operations)) {
			t := snap.Operations[op]
			logger.Debug("phase timings", "operation", op, "calls", t.Calls, "errors", t.Errors, "total_ms", t.TotalMS, "max_ms", t.MaxMS)
		}
	}
	return printOutcome(a.stdout, out)
}

// execute runs one simulation and publishes its artifacts when exports is
// non-nil.
func execute(ctx context.Context, store core.PersistentStore, exports blob.Store, sim domain.SimulationConfig, configYAML []byte, opts ...core.Option) (outcome, error) {
	res, err := core.NewService(store, opts...).Run(ctx, sim, string(configYAML))
	out := outcome{Result: res, Seed: sim.Seed}
	if err != nil {
		return out, err
	}
	if exports == nil {
		return out, nil
	}
	objects, err := report.Publish(ctx, exports, report.Run{Result: res, Seed: sim.Seed, ConfigYAML: configYAML})
	if err != nil {
		return out, fmt.Errorf("exporting run %s: %w", res.RunKey, err)
	}
	out.Artifacts = objects
	return out, nil
}

func printOutcome(w io.Writer, out outcome) error {
	r := out.Result
	if _, err := fmt.Fprintf(w, "simulation %d (run %s, seed %d): %d cycles, final population %d, created %d, rule warnings %d\n",
		r.SimulationID, r.RunKey, out.Seed, len(r.Cycles), r.FinalPopulation, r.Created, r.Warnings); err != nil {
		return err
	}
	for _, obj := range out.Artifacts {
		if _, err := fmt.Fprintf(w, "  %s (%d bytes)\n", obj.Key, obj.Size); err != nil {
			return err
		}
	}
	return nil
}

// withSeed returns a copy of cfg using seed, for runs that vary only the
// seed.
func withSeed(cfg *config.Config, seed uint64) *config.Config {
	c := *cfg
	c.Seed = seed
	return &c
}
