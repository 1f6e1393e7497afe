// Package memory provides an in-memory implementation of the simulation
// store used for tests and ephemeral runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"genesim/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// ErrClosed is returned by every method once the store has been closed.
var ErrClosed = errors.New("memory store closed")

type individualRow struct {
	domain.IndividualRecord
	deathCycle *int
}

// Store keeps every record in maps guarded by a single mutex. Identifiers are
// assigned from one monotonically increasing sequence per entity type.
type Store struct {
	mu          sync.RWMutex
	closed      bool
	seq         map[domain.EntityType]int64
	simulations map[int64]domain.SimulationRecord
	traits      map[int64][]domain.Trait
	breeders    map[int64]domain.BreederRecord
	individuals map[int64]*individualRow
	transfers   []domain.OwnershipTransfer
	stats       map[int64][]domain.CycleStats
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		seq:         make(map[domain.EntityType]int64),
		simulations: make(map[int64]domain.SimulationRecord),
		traits:      make(map[int64][]domain.Trait),
		breeders:    make(map[int64]domain.BreederRecord),
		individuals: make(map[int64]*individualRow),
		stats:       make(map[int64][]domain.CycleStats),
	}
}

func (s *Store) next(entity domain.EntityType) int64 {
	s.seq[entity]++
	return s.seq[entity]
}

func (s *Store) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

func (s *Store) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

// CreateSimulation stores a run header and returns its id.
func (s *Store) CreateSimulation(_ context.Context, sim domain.SimulationRecord) (int64, error) {
	var id int64
	err := s.write(func() error {
		id = s.next(domain.EntitySimulation)
		sim.ID = id
		if sim.Status == "" {
			sim.Status = domain.StatusPending
		}
		s.simulations[id] = sim
		return nil
	})
	return id, err
}

// GetSimulation returns a run header.
func (s *Store) GetSimulation(_ context.Context, simulationID int64) (domain.SimulationRecord, error) {
	var sim domain.SimulationRecord
	err := s.read(func() error {
		var ok bool
		if sim, ok = s.simulations[simulationID]; !ok {
			return fmt.Errorf("simulation %d: %w", simulationID, domain.ErrNotFound)
		}
		return nil
	})
	return sim, err
}

func (s *Store) updateSimulation(simulationID int64, fn func(*domain.SimulationRecord)) error {
	return s.write(func() error {
		sim, ok := s.simulations[simulationID]
		if !ok {
			return fmt.Errorf("simulation %d: %w", simulationID, domain.ErrNotFound)
		}
		fn(&sim)
		s.simulations[simulationID] = sim
		return nil
	})
}

// UpdateSimulationProgress records completed cycles and marks the run running.
func (s *Store) UpdateSimulationProgress(_ context.Context, simulationID int64, cyclesCompleted int) error {
	return s.updateSimulation(simulationID, func(sim *domain.SimulationRecord) {
		sim.Status = domain.StatusRunning
		sim.CyclesCompleted = cyclesCompleted
	})
}

// FinishSimulation sets the terminal status.
func (s *Store) FinishSimulation(_ context.Context, simulationID int64, status domain.SimulationStatus, finalPopulation int) error {
	return s.updateSimulation(simulationID, func(sim *domain.SimulationRecord) {
		sim.Status = status
		sim.FinalPopulation = finalPopulation
	})
}

// CreateTraits stores the trait catalog of a run.
func (s *Store) CreateTraits(_ context.Context, simulationID int64, traits []domain.Trait) error {
	return s.write(func() error {
		if _, ok := s.simulations[simulationID]; !ok {
			return fmt.Errorf("simulation %d: %w", simulationID, domain.ErrNotFound)
		}
		seen := make(map[int]struct{}, len(traits))
		for _, t := range traits {
			if _, dup := seen[t.ID]; dup {
				return fmt.Errorf("duplicate trait id %d", t.ID)
			}
			seen[t.ID] = struct{}{}
		}
		s.traits[simulationID] = append([]domain.Trait(nil), traits...)
		return nil
	})
}

// CreateBreeder stores a breeder and returns its id.
func (s *Store) CreateBreeder(_ context.Context, simulationID int64, spec domain.BreederSpec) (int64, error) {
	var id int64
	err := s.write(func() error {
		if _, ok := s.simulations[simulationID]; !ok {
			return fmt.Errorf("simulation %d: %w", simulationID, domain.ErrNotFound)
		}
		id = s.next(domain.EntityBreeder)
		s.breeders[id] = domain.BreederRecord{ID: id, SimulationID: simulationID, Variant: spec.Variant, MaxCreatures: spec.MaxCreatures}
		return nil
	})
	return id, err
}

// CreateIndividual stores an individual and returns its id. Both parents,
// when set, must already exist.
func (s *Store) CreateIndividual(_ context.Context, rec domain.IndividualRecord) (int64, error) {
	var id int64
	err := s.write(func() error {
		for _, parent := range []int64{rec.Parent1ID, rec.Parent2ID} {
			if parent == 0 {
				continue
			}
			if _, ok := s.individuals[parent]; !ok {
				return fmt.Errorf("parent %d: %w", parent, domain.ErrNotFound)
			}
		}
		id = s.next(domain.EntityIndividual)
		rec.ID = id
		rec.Genotypes = cloneGenotypes(rec.Genotypes)
		s.individuals[id] = &individualRow{IndividualRecord: rec}
		return nil
	})
	return id, err
}

func (s *Store) individual(id int64) (*individualRow, error) {
	row, ok := s.individuals[id]
	if !ok {
		return nil, fmt.Errorf("individual %d: %w", id, domain.ErrNotFound)
	}
	return row, nil
}

// UpdateOwnership sets the current owner of an individual.
func (s *Store) UpdateOwnership(_ context.Context, individualID, breederID int64) error {
	return s.write(func() error {
		row, err := s.individual(individualID)
		if err != nil {
			return err
		}
		row.BreederID = breederID
		return nil
	})
}

// UpdateHomedFlag marks an individual homed.
func (s *Store) UpdateHomedFlag(_ context.Context, individualID int64) error {
	return s.write(func() error {
		row, err := s.individual(individualID)
		if err != nil {
			return err
		}
		row.Homed = true
		return nil
	})
}

// MarkDeceased records the cycle an individual aged out.
func (s *Store) MarkDeceased(_ context.Context, individualID int64, cycle int) error {
	return s.write(func() error {
		row, err := s.individual(individualID)
		if err != nil {
			return err
		}
		row.deathCycle = &cycle
		return nil
	})
}

// RecordOwnershipTransfer appends to the ownership history.
func (s *Store) RecordOwnershipTransfer(_ context.Context, transfer domain.OwnershipTransfer) error {
	return s.write(func() error {
		if _, err := s.individual(transfer.IndividualID); err != nil {
			return err
		}
		s.transfers = append(s.transfers, transfer)
		return nil
	})
}

// RecordCycleStats stores one cycle record. Cycles are unique per run.
func (s *Store) RecordCycleStats(_ context.Context, simulationID int64, stats domain.CycleStats) error {
	return s.write(func() error {
		for _, existing := range s.stats[simulationID] {
			if existing.Cycle == stats.Cycle {
				return fmt.Errorf("cycle %d already recorded for simulation %d", stats.Cycle, simulationID)
			}
		}
		s.stats[simulationID] = append(s.stats[simulationID], stats)
		return nil
	})
}

// CountIndividuals returns how many individuals a run has created.
func (s *Store) CountIndividuals(_ context.Context, simulationID int64) (int, error) {
	n := 0
	err := s.read(func() error {
		for _, row := range s.individuals {
			if row.SimulationID == simulationID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ListCycleStats returns a run's cycle records in cycle order.
func (s *Store) ListCycleStats(_ context.Context, simulationID int64) ([]domain.CycleStats, error) {
	var out []domain.CycleStats
	err := s.read(func() error {
		out = append(out, s.stats[simulationID]...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Cycle < out[j].Cycle })
	return out, err
}

// Individual returns a stored individual and its death cycle, if any.
func (s *Store) Individual(id int64) (domain.IndividualRecord, *int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.individuals[id]
	if !ok {
		return domain.IndividualRecord{}, nil, false
	}
	rec := row.IndividualRecord
	rec.Genotypes = cloneGenotypes(rec.Genotypes)
	return rec, row.deathCycle, true
}

// Transfers returns a copy of the ownership history of a run.
func (s *Store) Transfers(simulationID int64) []domain.OwnershipTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OwnershipTransfer
	for _, t := range s.transfers {
		if t.SimulationID == simulationID {
			out = append(out, t)
		}
	}
	return out
}

// Close releases the store. Subsequent calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneGenotypes(in map[int]string) map[int]string {
	if in == nil {
		return nil
	}
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
