package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"genesim/internal/core"
)

func (a *app) batchCommand() *cobra.Command {
	var runs, parallel int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one configuration under consecutive seeds",
		Long: `Run the effective configuration once per seed, starting at the
configured seed and counting up. Runs are independent and execute
concurrently up to --parallel; each run stays single-threaded and
deterministic for its seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.batch(cmd.Context(), runs, parallel)
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 4, "number of runs")
	cmd.Flags().IntVar(&parallel, "parallel", runtime.GOMAXPROCS(0), "maximum concurrent runs")
	return cmd
}

func (a *app) batch(ctx context.Context, runs, parallel int) error {
	if runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", runs)
	}
	parallel = max(parallel, 1)
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	sim, err := a.simulation(cfg)
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

	var opts []core.Option
	if addr := a.v.GetString(flagMetricsAddr); addr != "" {
		ms, err := startMetricsServer(addr, logger)
		if err != nil {
			return err
		}
		defer func() { _ = ms.Close() }()
		opts = append(opts, core.WithMetricsRecorder(ms.recorder))
	}

	seeds := make([]uint64, runs)
	for i := range seeds {
		seeds[i] = cfg.Seed + uint64(i)
	}
	outs, err := runBatch(ctx, seeds, parallel, func(ctx context.Context, seed uint64) (outcome, error) {
		configYAML, err := withSeed(cfg, seed).YAML()
		if err != nil {
			return outcome{}, err
		}
		s := sim
		s.Seed = seed
		runOpts := append(slices.Clone(opts), core.WithLogger(core.NewSlogLogger(logger.With("seed", seed))))
		return execute(ctx, store, exports, s, configYAML, runOpts...)
	})
	if err != nil {
		return err
	}

	finals := make([]float64, len(outs))
	for i, out := range outs {
		if err := printOutcome(a.stdout, out); err != nil {
			return err
		}
		finals[i] = float64(out.Result.FinalPopulation)
	}
	mean, sd := finals[0], 0.0
	if len(finals) > 1 {
		mean, sd = stat.MeanStdDev(finals, nil)
	}
	_, err = fmt.Fprintf(a.stdout, "batch: %d runs, final population mean %.1f, stddev %.1f\n", len(outs), mean, sd)
	return err
}

// runBatch calls fn once per seed with at most parallel calls in flight. The
// first failure cancels the remaining runs. Outcomes are returned in seed
// order.
func runBatch(ctx context.Context, seeds []uint64, parallel int, fn func(context.Context, uint64) (outcome, error)) ([]outcome, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	outs := make([]outcome, len(seeds))
	for i, seed := range seeds {
		g.Go(func() error {
			out, err := fn(ctx, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}
