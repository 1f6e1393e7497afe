package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"genesim/internal/breeding"
	"genesim/internal/creature"
	"genesim/internal/cycle"
	"genesim/internal/genetics"
	"genesim/internal/population"
	"genesim/pkg/domain"
)

// ErrRunFailed wraps every error that aborted a simulation run.
var ErrRunFailed = errors.New("simulation run failed")

// CycleReport is handed to the cycle observer after each completed cycle.
type CycleReport struct {
	SimulationID int64
	RunKey       string
	TotalCycles  int
	Stats        domain.CycleStats
	Pairs        int
	Created      int
	Living       int
	Males        int
	Females      int
	TargetShare  float64
	Violations   domain.Result
}

// CycleObserver receives a report after each cycle.
type CycleObserver func(ctx context.Context, report CycleReport)

// CycleMetrics is implemented by recorders that also track per-cycle
// population figures.
type CycleMetrics interface {
	ObserveCycle(stats domain.CycleStats, violations domain.Result)
}

// RunResult summarises a finished run.
type RunResult struct {
	SimulationID    int64
	RunKey          string
	Cycles          []domain.CycleStats
	FinalPopulation int
	Created         int
	Warnings        int
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder installs a recorder observing every phase and run.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer installs a tracer that spans every phase and run.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(e *RulesEngine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithCycleObserver registers a callback invoked after each cycle.
func WithCycleObserver(fn CycleObserver) Option {
	return func(s *Service) {
		s.observer = fn
	}
}

// Service drives simulation runs against a persistent store.
type Service struct {
	store    domain.PersistentStore
	engine   *RulesEngine
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	clock    Clock
	observer CycleObserver
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		engine:  NewDefaultRulesEngine(),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   systemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// observe runs fn inside a span and records its duration and outcome.
func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, operation, err == nil, s.clock.Now().Sub(started))
	span.End(err)
	return err
}

// run is the state of one simulation run.
type run struct {
	id       int64
	key      string
	cfg      domain.SimulationConfig
	records  []domain.BreederRecord
	breeders []*breeding.Breeder
	pop      *population.Population
}

// Run executes a complete simulation: it persists the run header, traits,
// breeders and founders, executes every cycle, and finalises the run record.
// configYAML is stored verbatim with the run header. Any error marks the run
// failed and is returned wrapped in ErrRunFailed.
func (s *Service) Run(ctx context.Context, cfg domain.SimulationConfig, configYAML string) (RunResult, error) {
	result := RunResult{RunKey: uuid.NewString(), StartedAt: s.clock.Now()}
	id, err := s.store.CreateSimulation(ctx, domain.SimulationRecord{
		RunKey:            result.RunKey,
		Seed:              cfg.Seed,
		Status:            domain.StatusPending,
		Cycles:            cfg.Cycles,
		InitialPopulation: cfg.InitialPopulation,
		ConfigYAML:        configYAML,
	})
	if err != nil {
		return result, fmt.Errorf("%w: create simulation: %w", ErrRunFailed, err)
	}
	result.SimulationID = id
	r := &run{id: id, key: result.RunKey, cfg: cfg}
	s.logger.Info("simulation started", "simulation_id", id, "run_key", r.key, "seed", cfg.Seed, "cycles", cfg.Cycles)

	err = s.observe(ctx, "simulation.run", func(ctx context.Context) error {
		return s.execute(ctx, r, &result)
	})
	result.FinishedAt = s.clock.Now()
	final := 0
	if r.pop != nil {
		final = r.pop.Len()
	}
	result.FinalPopulation = final
	if err != nil {
		s.logger.Error("simulation failed", "simulation_id", id, "error", err)
		if ferr := s.store.FinishSimulation(context.WithoutCancel(ctx), id, domain.StatusFailed, final); ferr != nil {
			s.logger.Error("mark simulation failed", "simulation_id", id, "error", ferr)
		}
		return result, fmt.Errorf("%w: simulation %d: %w", ErrRunFailed, id, err)
	}
	if err := s.store.FinishSimulation(ctx, id, domain.StatusCompleted, final); err != nil {
		return result, fmt.Errorf("%w: finish simulation %d: %w", ErrRunFailed, id, err)
	}
	s.logger.Info("simulation completed", "simulation_id", id, "final_population", final, "created", result.Created, "duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

func (s *Service) execute(ctx context.Context, r *run, result *RunResult) error {
	rng := genetics.NewRand(r.cfg.Seed)
	if err := s.seed(ctx, r, rng); err != nil {
		return err
	}
	result.Created = r.pop.Len()
	if err := s.store.UpdateSimulationProgress(ctx, r.id, 0); err != nil {
		return fmt.Errorf("start simulation: %w", err)
	}

	orch := cycle.New(s.store, r.id, r.cfg, r.breeders, r.pop, rng, cycle.WithInstrument(s.instrumentPhase))
	for i := 0; i < r.cfg.Cycles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		known := memberIDs(r.pop)
		outcome, err := orch.Run(WithCycle(ctx, i))
		if err != nil {
			return err
		}
		created := createdIndividuals(outcome.Changes)
		for _, rec := range created {
			known[rec.ID] = struct{}{}
		}
		result.Created += len(created)
		result.Cycles = append(result.Cycles, outcome.Stats)

		violations, err := s.evaluate(ctx, r, outcome, known)
		if err != nil {
			return err
		}
		result.Warnings += violations.Count(domain.SeverityWarn)
		if cm, ok := s.metrics.(CycleMetrics); ok {
			cm.ObserveCycle(outcome.Stats, violations)
		}
		if violations.HasBlocking() {
			return domain.RuleViolationError{Result: violations}
		}

		st := outcome.Stats
		s.logger.Debug("cycle complete", "cycle", st.Cycle, "pairs", outcome.Pairs, "births", st.Births, "deaths", st.Deaths, "homed", st.HomedOut, "transfers", st.Transfers, "population", st.PopulationSize)
		if s.observer != nil {
			males, females := r.pop.SexCounts()
			s.observer(ctx, CycleReport{
				SimulationID: r.id,
				RunKey:       r.key,
				TotalCycles:  r.cfg.Cycles,
				Stats:        st,
				Pairs:        outcome.Pairs,
				Created:      result.Created,
				Living:       r.pop.Len(),
				Males:        males,
				Females:      females,
				TargetShare:  r.pop.TargetShare(r.cfg.Traits, r.cfg.Policy.TargetPhenotypes),
				Violations:   violations,
			})
		}
		if err := s.store.UpdateSimulationProgress(ctx, r.id, i+1); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
	}
	return nil
}

// seed persists the trait catalog, the breeders and the founders.
func (s *Service) seed(ctx context.Context, r *run, rng *rand.Rand) error {
	if err := s.store.CreateTraits(ctx, r.id, r.cfg.Traits); err != nil {
		return fmt.Errorf("create traits: %w", err)
	}
	ids := make([]int64, 0, len(r.cfg.Breeders))
	for _, spec := range r.cfg.Breeders {
		strategy, err := breeding.New(spec.Variant, r.cfg.Traits, r.cfg.Policy, r.cfg.AvoidanceMaxInbreeding)
		if err != nil {
			return err
		}
		id, err := s.store.CreateBreeder(ctx, r.id, spec)
		if err != nil {
			return fmt.Errorf("create %s breeder: %w", spec.Variant, err)
		}
		ids = append(ids, id)
		r.records = append(r.records, domain.BreederRecord{ID: id, SimulationID: r.id, Variant: spec.Variant, MaxCreatures: spec.MaxCreatures})
		r.breeders = append(r.breeders, &breeding.Breeder{ID: id, MaxCreatures: spec.MaxCreatures, Strategy: strategy})
	}

	founders, err := creature.CreateFounders(r.cfg, ids, rng)
	if err != nil {
		return fmt.Errorf("create founders: %w", err)
	}
	for _, f := range founders {
		f.SimulationID = r.id
		if err := f.Validate(); err != nil {
			return fmt.Errorf("founder: %w", err)
		}
		id, err := s.store.CreateIndividual(ctx, f.Record())
		if err != nil {
			return fmt.Errorf("persist founder: %w", err)
		}
		f.ID = id
	}
	r.pop = population.New(0)
	r.pop.Add(founders...)
	s.logger.Debug("founders created", "simulation_id", r.id, "count", len(founders), "breeders", len(r.breeders))
	return nil
}

func (s *Service) instrumentPhase(ctx context.Context, phase cycle.Phase, run func(context.Context) error) error {
	return s.observe(ctx, "cycle."+string(phase), run)
}

// memberIDs returns the ids of the working set. Together with a cycle's
// offspring they cover every parent the cycle can reference.
func memberIDs(pop *population.Population) map[int64]struct{} {
	members := pop.Individuals()
	ids := make(map[int64]struct{}, len(members))
	for _, ind := range members {
		ids[ind.ID] = struct{}{}
	}
	return ids
}

func (s *Service) evaluate(ctx context.Context, r *run, outcome cycle.Outcome, known map[int64]struct{}) (domain.Result, error) {
	view := ruleView{cycle: outcome.Stats.Cycle, breeders: r.records, pop: r.pop, known: known}
	res, err := s.engine.Evaluate(ctx, view, outcome.Changes)
	if err != nil {
		return domain.Result{}, fmt.Errorf("evaluate rules: %w", err)
	}
	for _, v := range res.Violations {
		switch v.Severity {
		case domain.SeverityBlock:
			s.logger.Error("rule violation", "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		case domain.SeverityWarn:
			s.logger.Warn("rule violation", "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		default:
			s.logger.Debug("rule note", "rule", v.Rule, "message", v.Message)
		}
	}
	return res, nil
}

// ruleView exposes the working population to rules. known holds the
// individuals alive at the start of the cycle plus its offspring.
type ruleView struct {
	cycle    int
	breeders []domain.BreederRecord
	pop      *population.Population
	known    map[int64]struct{}
}

func (v ruleView) Cycle() int { return v.cycle }

func (v ruleView) ListBreeders() []domain.BreederRecord {
	out := make([]domain.BreederRecord, len(v.breeders))
	copy(out, v.breeders)
	return out
}

func (v ruleView) OwnedCount(breederID int64) int { return len(v.pop.OwnedBy(breederID)) }

func (v ruleView) KnownIndividual(id int64) bool {
	_, ok := v.known[id]
	return ok
}

var _ domain.RuleView = ruleView{}
