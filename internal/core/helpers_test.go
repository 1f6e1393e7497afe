package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"genesim/internal/breeding"
	"genesim/internal/infra/persistence/memory"
	"genesim/pkg/domain"
)

func testConfig(seed uint64, cycles int) domain.SimulationConfig {
	return domain.SimulationConfig{
		Seed:              seed,
		Cycles:            cycles,
		InitialPopulation: 40,
		FemaleRatio:       0.5,
		Mode:              domain.ModeQuiet,
		Archetype: domain.Archetype{
			GestationCycles:    2,
			NursingCycles:      2,
			MaturityCycles:     6,
			MaxFertilityMale:   60,
			MaxFertilityFemale: 50,
			LifespanMin:        30,
			LifespanMax:        60,
			LitterMin:          1,
			LitterMax:          4,
			NearingEndCycles:   4,
		},
		Traits: []domain.Trait{{ID: 0, Name: "Coat", Type: domain.TraitSimpleMendelian, Genotypes: []domain.GenotypeEntry{
			{Genotype: "BB", Phenotype: "Black", InitialFrequency: 0.25},
			{Genotype: "Bb", Phenotype: "Black", InitialFrequency: 0.5},
			{Genotype: "bb", Phenotype: "Brown", InitialFrequency: 0.25},
		}}},
		Breeders: []domain.BreederSpec{
			{Variant: domain.VariantUnselective, MaxCreatures: 20},
			{Variant: domain.VariantSelectiveClub, MaxCreatures: 20},
		},
		Policy: domain.BreederPolicy{
			TargetPhenotypes: []domain.PhenotypeTarget{{TraitID: 0, Phenotype: "Black"}},
		},
		AvoidanceMaxInbreeding: breeding.DefaultMaxInbreeding,
		Transfer: domain.TransferSettings{
			SelectiveClubMale:            breeding.DefaultSelectiveClubMaleTransfer,
			SelectiveClubFemaleTransfers: breeding.DefaultSelectiveClubFemaleTransfers,
			HighVolume:                   breeding.DefaultHighVolumeTransfer,
			Default:                      breeding.DefaultBaselineTransfer,
			MaxPerCycle:                  1,
		},
		CullFraction:      0.8,
		ReplacementBuffer: breeding.DefaultReplacementBuffer,
	}
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu     sync.Mutex
	calls  []metricsCall
	cycles []domain.CycleStats
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) ObserveCycle(stats domain.CycleStats, _ domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles = append(c.cycles, stats)
}

func (c *captureMetricsRecorder) count(op string, success bool) int {
	n := 0
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			n++
		}
	}
	return n
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op != op {
			continue
		}
		if success == (record.err == nil) {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

var errInjected = errors.New("injected store failure")

// failingStore fails RecordCycleStats from the given cycle on.
type failingStore struct {
	*memory.Store
	failAt int
}

func (f *failingStore) RecordCycleStats(ctx context.Context, simulationID int64, stats domain.CycleStats) error {
	if stats.Cycle >= f.failAt {
		return errInjected
	}
	return f.Store.RecordCycleStats(ctx, simulationID, stats)
}

// staticRule reports one violation of a fixed severity per evaluation.
type staticRule struct {
	severity domain.Severity
}

func (staticRule) Name() string { return "static" }

func (r staticRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "static",
		Severity: r.severity,
		Message:  "static violation",
		Entity:   domain.EntitySimulation,
		EntityID: int64(view.Cycle()),
	}}}, nil
}

// viewRecorder keeps every view the engine hands to rules.
type viewRecorder struct {
	views []domain.RuleView
}

func (*viewRecorder) Name() string { return "view_recorder" }

func (r *viewRecorder) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	r.views = append(r.views, view)
	return domain.Result{}, nil
}
