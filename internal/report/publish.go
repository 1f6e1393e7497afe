package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"genesim/internal/blob"
	"genesim/internal/core"
	"genesim/pkg/domain"
)

// Artifact names under a run prefix.
const (
	StatsFile      = "stats.csv"
	TraitStatsFile = "trait_stats.csv"
	ConfigFile     = "config.yaml"
	SummaryFile    = "summary.json"
)

// Artifacts lists the files of a run bundle in publish order.
var Artifacts = []string{StatsFile, TraitStatsFile, ConfigFile, SummaryFile}

var contentTypes = map[string]string{
	StatsFile:      "text/csv",
	TraitStatsFile: "text/csv",
	ConfigFile:     "application/yaml",
	SummaryFile:    "application/json",
}

// ErrNoRunKey is returned when a run has no key to publish under.
var ErrNoRunKey = errors.New("report: run key required")

// Run is everything needed to build a run bundle.
type Run struct {
	Result     core.RunResult
	Seed       uint64
	ConfigYAML []byte
}

// Prefix is the blob key prefix of a run.
func Prefix(runKey string) string {
	return path.Join("runs", runKey) + "/"
}

// Bundle renders every artifact of a run, keyed by file name.
func Bundle(run Run) (map[string][]byte, error) {
	var stats, traits bytes.Buffer
	if err := WriteCycleCSV(&stats, run.Result.Cycles); err != nil {
		return nil, err
	}
	if err := WriteTraitCSV(&traits, run.Result.Cycles); err != nil {
		return nil, err
	}
	summary, err := Summarize(run.Result, run.Seed).JSON()
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		StatsFile:      stats.Bytes(),
		TraitStatsFile: traits.Bytes(),
		ConfigFile:     run.ConfigYAML,
		SummaryFile:    summary,
	}, nil
}

// Publish writes the bundle under runs/<run-key>/. Artifacts are write-once,
// so publishing the same run twice fails with blob.ErrExists.
func Publish(ctx context.Context, store blob.Store, run Run) ([]blob.Object, error) {
	if run.Result.RunKey == "" {
		return nil, ErrNoRunKey
	}
	files, err := Bundle(run)
	if err != nil {
		return nil, err
	}
	prefix := Prefix(run.Result.RunKey)
	objects := make([]blob.Object, 0, len(Artifacts))
	for _, name := range Artifacts {
		obj, err := store.Put(ctx, prefix+name, bytes.NewReader(files[name]), blob.PutOptions{
			ContentType: contentTypes[name],
			Metadata: map[string]string{
				"run-key":       run.Result.RunKey,
				"simulation-id": fmt.Sprint(run.Result.SimulationID),
			},
		})
		if err != nil {
			return objects, fmt.Errorf("publish %s: %w", name, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Load rebuilds a Run from a persisted simulation so it can be exported
// after the fact.
func Load(ctx context.Context, store domain.PersistentStore, simulationID int64) (Run, error) {
	sim, err := store.GetSimulation(ctx, simulationID)
	if err != nil {
		return Run{}, fmt.Errorf("load simulation %d: %w", simulationID, err)
	}
	stats, err := store.ListCycleStats(ctx, simulationID)
	if err != nil {
		return Run{}, fmt.Errorf("load cycle stats of %d: %w", simulationID, err)
	}
	created, err := store.CountIndividuals(ctx, simulationID)
	if err != nil {
		return Run{}, fmt.Errorf("count individuals of %d: %w", simulationID, err)
	}
	return Run{
		Result: core.RunResult{
			SimulationID:    sim.ID,
			RunKey:          sim.RunKey,
			Cycles:          stats,
			FinalPopulation: sim.FinalPopulation,
			Created:         created,
		},
		Seed:       sim.Seed,
		ConfigYAML: []byte(sim.ConfigYAML),
	}, nil
}
