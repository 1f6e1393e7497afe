package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"genesim/internal/blob"
	"genesim/internal/report"
)

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <simulation-id>",
		Short: "Publish the artifacts of a recorded simulation",
		Long: `Rebuild the statistics, summary and configuration of a simulation
from the store and publish them under runs/<run-key>/. The blob driver
comes from --export, falling back to GENESIM_BLOB_DRIVER.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid simulation id %q", args[0])
			}
			return a.export(cmd.Context(), id)
		},
	}
}

func (a *app) export(ctx context.Context, simulationID int64) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	exports, err := a.exportStore(ctx)
	if err != nil {
		return err
	}
	if exports == nil {
		if exports, err = blob.Open(ctx); err != nil {
			return fmt.Errorf("opening export store: %w", err)
		}
	}

	run, err := report.Load(ctx, store, simulationID)
	if err != nil {
		return err
	}
	objects, err := report.Publish(ctx, exports, run)
	if err != nil {
		return fmt.Errorf("exporting simulation %d: %w", simulationID, err)
	}
	return printOutcome(a.stdout, outcome{Result: run.Result, Seed: run.Seed, Artifacts: objects})
}
