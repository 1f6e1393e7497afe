// Package creature models one simulated individual: its genome, lineage,
// ownership, and the cycle-stamped milestones that drive eligibility.
package creature

import (
	"errors"
	"fmt"

	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// Invariant violations raised while constructing or validating individuals.
var (
	ErrSelfParent        = errors.New("individual cannot be its own parent")
	ErrFounderConception = errors.New("founder cannot have a conception cycle")
	ErrMissingParentID   = errors.New("parent has no durable id")
	ErrInbreedingRange   = errors.New("inbreeding coefficient outside [0, 1]")
	ErrLifespan          = errors.New("lifespan must be positive")
	ErrHalfPedigree      = errors.New("individual must have both parents or none")
	ErrParentSexMismatch = errors.New("pair must be one male and one female")
)

// Individual is one organism in the working set.
type Individual struct {
	ID              int64
	SimulationID    int64
	BirthCycle      int
	Sex             domain.Sex
	Genome          []genetics.Genotype
	Parent1ID       int64
	Parent2ID       int64
	Generation      int
	BreederID       int64
	ProducedByID    int64
	Inbreeding      float64
	Lifespan        int
	Alive           bool
	Homed           bool
	ConceptionCycle *int
	MaturityCycle   int
	FertilityEnd    int
	GestationEnd    *int
	NursingEnd      *int
	HasProduced     bool
	TransferCount   int
}

// KinID implements genetics.Kin.
func (ind *Individual) KinID() int64 { return ind.ID }

// ParentIDs implements genetics.Kin.
func (ind *Individual) ParentIDs() (int64, int64) { return ind.Parent1ID, ind.Parent2ID }

// InbreedingCoefficient implements genetics.Kin.
func (ind *Individual) InbreedingCoefficient() float64 { return ind.Inbreeding }

// IsFounder reports whether the individual has no parents.
func (ind *Individual) IsFounder() bool {
	return ind.Parent1ID == 0 && ind.Parent2ID == 0
}

// Persisted reports whether the store has assigned a durable id.
func (ind *Individual) Persisted() bool { return ind.ID != 0 }

// Genotype returns the genotype at a trait slot, or nil when unset.
func (ind *Individual) Genotype(traitID int) genetics.Genotype {
	if traitID < 0 || traitID >= len(ind.Genome) {
		return nil
	}
	return ind.Genome[traitID]
}

// GenotypeString returns the canonical genotype string at a trait slot.
func (ind *Individual) GenotypeString(traitID int) (string, bool) {
	g := ind.Genotype(traitID)
	if g == nil {
		return "", false
	}
	return g.String(), true
}

// Phenotype returns the phenotype expressed for a trait, or false when the
// slot is unset.
func (ind *Individual) Phenotype(trait domain.Trait) (string, bool) {
	g, ok := ind.GenotypeString(trait.ID)
	if !ok {
		return "", false
	}
	return trait.Phenotype(g, ind.Sex), true
}

// SetGenotype stores a genotype, growing the genome as needed.
func (ind *Individual) SetGenotype(traitID int, g genetics.Genotype) {
	for len(ind.Genome) <= traitID {
		ind.Genome = append(ind.Genome, nil)
	}
	ind.Genome[traitID] = g
}

// Age returns the age in cycles at the given cycle.
func (ind *Individual) Age(cycle int) int { return cycle - ind.BirthCycle }

// DeathCycle is the cycle at which the individual ages out.
func (ind *Individual) DeathCycle() int { return ind.BirthCycle + ind.Lifespan }

// Gestating reports whether a female is carrying a litter at the cycle.
func (ind *Individual) Gestating(cycle int) bool {
	return ind.GestationEnd != nil && cycle < *ind.GestationEnd
}

// Nursing reports whether a female is nursing a litter at the cycle.
func (ind *Individual) Nursing(cycle int) bool {
	return ind.NursingEnd != nil && cycle < *ind.NursingEnd
}

// IsBreedingEligible reports whether the individual may be paired at cycle.
func (ind *Individual) IsBreedingEligible(cycle int) bool {
	if !ind.Alive || ind.Homed {
		return false
	}
	if cycle < ind.MaturityCycle || cycle >= ind.FertilityEnd {
		return false
	}
	if ind.Sex == domain.SexFemale && (ind.Gestating(cycle) || ind.Nursing(cycle)) {
		return false
	}
	return true
}

// IsNearingEndOfReproduction reports whether the fertility window closes
// within window cycles.
func (ind *Individual) IsNearingEndOfReproduction(cycle, window int) bool {
	return ind.Alive && cycle >= ind.FertilityEnd-window
}

// Conceive stamps the gestation and nursing windows for a female that
// conceived at cycle.
func (ind *Individual) Conceive(cycle int, arch domain.Archetype) {
	gestationEnd := cycle + arch.GestationCycles
	nursingEnd := gestationEnd + arch.NursingCycles
	ind.GestationEnd = &gestationEnd
	ind.NursingEnd = &nursingEnd
	ind.HasProduced = true
}

// Validate checks the structural invariants of the record.
func (ind *Individual) Validate() error {
	if ind.IsFounder() {
		if ind.ConceptionCycle != nil {
			return ErrFounderConception
		}
	} else {
		if ind.Parent1ID == 0 || ind.Parent2ID == 0 {
			return ErrHalfPedigree
		}
		if ind.Parent1ID == ind.Parent2ID || (ind.ID != 0 && (ind.ID == ind.Parent1ID || ind.ID == ind.Parent2ID)) {
			return ErrSelfParent
		}
	}
	if ind.Inbreeding < 0 || ind.Inbreeding > 1 {
		return fmt.Errorf("%w: %v", ErrInbreedingRange, ind.Inbreeding)
	}
	if ind.Lifespan <= 0 {
		return fmt.Errorf("%w: %d", ErrLifespan, ind.Lifespan)
	}
	return nil
}

// Record converts the individual to its durable row shape.
func (ind *Individual) Record() domain.IndividualRecord {
	genotypes := make(map[int]string, len(ind.Genome))
	for traitID, g := range ind.Genome {
		if g != nil {
			genotypes[traitID] = g.String()
		}
	}
	return domain.IndividualRecord{
		ID:              ind.ID,
		SimulationID:    ind.SimulationID,
		BirthCycle:      ind.BirthCycle,
		Sex:             ind.Sex,
		Parent1ID:       ind.Parent1ID,
		Parent2ID:       ind.Parent2ID,
		BreederID:       ind.BreederID,
		ProducedByID:    ind.ProducedByID,
		Generation:      ind.Generation,
		Inbreeding:      ind.Inbreeding,
		Lifespan:        ind.Lifespan,
		ConceptionCycle: ind.ConceptionCycle,
		Homed:           ind.Homed,
		Genotypes:       genotypes,
	}
}
