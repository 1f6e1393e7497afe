// Package cycle runs the per-cycle phases of a simulation against the
// working population and a persistent store.
package cycle

import (
	"context"
	"fmt"
	"math/rand/v2"

	"genesim/internal/breeding"
	"genesim/internal/creature"
	"genesim/internal/population"
	"genesim/pkg/domain"
)

// Phase names one step of a cycle.
type Phase string

// Phases in execution order.
const (
	PhaseReplacement  Phase = "replacement_accounting"
	PhaseEligibility  Phase = "eligibility"
	PhasePairing      Phase = "pairing"
	PhaseReproduction Phase = "reproduction"
	PhaseRetention    Phase = "retention"
	PhaseTransfers    Phase = "transfers"
	PhaseCulling      Phase = "culling"
	PhaseAging        Phase = "aging"
)

// Phases lists every phase in execution order.
var Phases = []Phase{
	PhaseReplacement,
	PhaseEligibility,
	PhasePairing,
	PhaseReproduction,
	PhaseRetention,
	PhaseTransfers,
	PhaseCulling,
	PhaseAging,
}

// Instrument wraps the execution of a phase. Implementations must call run
// exactly once and return its error.
type Instrument func(ctx context.Context, phase Phase, run func(context.Context) error) error

func passthrough(ctx context.Context, _ Phase, run func(context.Context) error) error {
	return run(ctx)
}

// Outcome summarises one executed cycle.
type Outcome struct {
	Stats   domain.CycleStats
	Pairs   int
	Changes []domain.Change
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInstrument installs a phase wrapper, typically for metrics and tracing.
func WithInstrument(fn Instrument) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.instrument = fn
		}
	}
}

// Orchestrator executes cycles. It owns the population and the run's random
// source; it is not safe for concurrent use.
type Orchestrator struct {
	store        domain.PersistentStore
	simulationID int64
	cfg          domain.SimulationConfig
	breeders     []*breeding.Breeder
	byID         map[int64]*breeding.Breeder
	pop          *population.Population
	rng          *rand.Rand
	transfers    breeding.TransferPolicy
	instrument   Instrument
}

// New returns an orchestrator positioned at the population's current cycle.
func New(store domain.PersistentStore, simulationID int64, cfg domain.SimulationConfig, breeders []*breeding.Breeder, pop *population.Population, rng *rand.Rand, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		simulationID: simulationID,
		cfg:          cfg,
		breeders:     breeders,
		byID:         make(map[int64]*breeding.Breeder, len(breeders)),
		pop:          pop,
		rng:          rng,
		transfers:    breeding.NewTransferPolicy(cfg.Transfer, cfg.Archetype),
		instrument:   passthrough,
	}
	for _, b := range breeders {
		o.byID[b.ID] = b
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Population returns the working set.
func (o *Orchestrator) Population() *population.Population { return o.pop }

// Breeders returns the active breeders in distribution order.
func (o *Orchestrator) Breeders() []*breeding.Breeder { return o.breeders }

// state is the scratch space of a single cycle.
type state struct {
	cycle     int
	plan      *breeding.ReplacementPlan
	males     []*creature.Individual
	females   []*creature.Individual
	pairs     []mating
	mated     map[*creature.Individual]struct{}
	offspring []*creature.Individual
	stats     domain.CycleStats
	changes   []domain.Change
}

type mating struct {
	breeding.Pair
	breederID int64
}

// Run executes one cycle. Randomness is consumed in phase order: pairing,
// litter sizes and offspring, retention choices, transfers, then culling.
// Any error aborts the cycle.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	st := &state{
		cycle: o.pop.Cycle(),
		mated: make(map[*creature.Individual]struct{}),
	}
	st.stats.Cycle = st.cycle
	steps := map[Phase]func(context.Context, *state) error{
		PhaseReplacement:  o.planReplacements,
		PhaseEligibility:  o.filterEligible,
		PhasePairing:      o.distributePairs,
		PhaseReproduction: o.reproduce,
		PhaseRetention:    o.retain,
		PhaseTransfers:    o.transferOwnership,
		PhaseCulling:      o.cullNonBreeders,
		PhaseAging:        o.age,
	}
	for _, phase := range Phases {
		step := steps[phase]
		err := o.instrument(ctx, phase, func(ctx context.Context) error {
			return step(ctx, st)
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("cycle %d %s: %w", st.cycle, phase, err)
		}
	}
	return Outcome{Stats: st.stats, Pairs: len(st.pairs), Changes: st.changes}, nil
}

// home removes a living individual from the breeding pool and the working set.
func (o *Orchestrator) home(ctx context.Context, st *state, ind *creature.Individual) error {
	if ind.Homed {
		return nil
	}
	before := ind.Record()
	ind.Homed = true
	if err := o.store.UpdateHomedFlag(ctx, ind.ID); err != nil {
		return fmt.Errorf("home individual %d: %w", ind.ID, err)
	}
	o.pop.Remove(ind)
	st.stats.HomedOut++
	st.changes = append(st.changes, domain.Change{Entity: domain.EntityIndividual, Action: domain.ActionUpdate, Before: before, After: ind.Record()})
	return nil
}

// reassign moves an individual to a new owner and records the transfer.
func (o *Orchestrator) reassign(ctx context.Context, st *state, ind *creature.Individual, to int64, reason string) error {
	transfer := domain.OwnershipTransfer{
		SimulationID:  o.simulationID,
		IndividualID:  ind.ID,
		FromBreederID: ind.BreederID,
		ToBreederID:   to,
		Cycle:         st.cycle,
		Reason:        reason,
	}
	if err := o.store.UpdateOwnership(ctx, ind.ID, to); err != nil {
		return fmt.Errorf("update owner of %d: %w", ind.ID, err)
	}
	if err := o.store.RecordOwnershipTransfer(ctx, transfer); err != nil {
		return fmt.Errorf("record transfer of %d: %w", ind.ID, err)
	}
	ind.BreederID = to
	st.changes = append(st.changes, domain.Change{Entity: domain.EntityTransfer, Action: domain.ActionCreate, After: transfer})
	return nil
}
