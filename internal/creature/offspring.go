package creature

import (
	"fmt"
	"math/rand/v2"

	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// Mating describes one conception.
type Mating struct {
	Sire       *Individual
	Dam        *Individual
	Cycle      int
	ProducedBy int64
	// OwnerID overrides the dam's breeder as owner when non-zero.
	OwnerID int64
}

// CreateOffspring constructs one offspring of the mating. Randomness is
// consumed in a fixed order: sex, then sire and dam gametes per trait in
// catalog order, then lifespan.
func CreateOffspring(m Mating, traits []domain.Trait, arch domain.Archetype, rng *rand.Rand) (*Individual, error) {
	if m.Sire == nil || m.Dam == nil {
		return nil, ErrMissingParentID
	}
	if !m.Sire.Persisted() || !m.Dam.Persisted() {
		return nil, fmt.Errorf("%w: sire %d dam %d", ErrMissingParentID, m.Sire.ID, m.Dam.ID)
	}
	if m.Sire.ID == m.Dam.ID {
		return nil, ErrSelfParent
	}
	if m.Sire.Sex != domain.SexMale || m.Dam.Sex != domain.SexFemale {
		return nil, ErrParentSexMismatch
	}

	sex := domain.SexFemale
	if rng.IntN(2) == 0 {
		sex = domain.SexMale
	}

	child := &Individual{
		SimulationID: m.Dam.SimulationID,
		Sex:          sex,
		Parent1ID:    m.Sire.ID,
		Parent2ID:    m.Dam.ID,
		BreederID:    m.Dam.BreederID,
		ProducedByID: m.ProducedBy,
		Alive:        true,
	}
	if m.OwnerID != 0 {
		child.BreederID = m.OwnerID
	}

	for _, trait := range traits {
		paternal, err := genetics.MakeGamete(m.Sire.Genotype(trait.ID), rng)
		if err != nil {
			return nil, fmt.Errorf("sire %d trait %d: %w", m.Sire.ID, trait.ID, err)
		}
		maternal, err := genetics.MakeGamete(m.Dam.Genotype(trait.ID), rng)
		if err != nil {
			return nil, fmt.Errorf("dam %d trait %d: %w", m.Dam.ID, trait.ID, err)
		}
		g, err := genetics.Combine(maternal, paternal, trait.Type, sex)
		if err != nil {
			return nil, fmt.Errorf("trait %d: %w", trait.ID, err)
		}
		child.SetGenotype(trait.ID, g)
	}

	conception := m.Cycle
	child.ConceptionCycle = &conception
	child.Inbreeding = genetics.Inbreeding(m.Sire, m.Dam)
	child.BirthCycle = conception + arch.GestationCycles
	child.MaturityCycle = child.BirthCycle + arch.MaturityCycles
	child.FertilityEnd = child.BirthCycle + arch.FertilityCycles(sex)
	child.Generation = max(m.Sire.Generation, m.Dam.Generation) + 1
	child.Lifespan = genetics.UniformInt(rng, arch.LifespanMin, arch.LifespanMax)

	if err := child.Validate(); err != nil {
		return nil, err
	}
	return child, nil
}
