package creature

import (
	"fmt"
	"math/rand/v2"

	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// CreateFounders builds the initial population. Founders are assigned to
// breeders round-robin, given an age in [1, lifespan] cycles, and start
// sexually mature.
func CreateFounders(cfg domain.SimulationConfig, breederIDs []int64, rng *rand.Rand) ([]*Individual, error) {
	arch := cfg.Archetype
	out := make([]*Individual, 0, cfg.InitialPopulation)
	for i := 0; i < cfg.InitialPopulation; i++ {
		sex := domain.SexMale
		if rng.Float64() < cfg.FemaleRatio {
			sex = domain.SexFemale
		}
		ind := &Individual{Sex: sex, Alive: true}
		for _, trait := range cfg.Traits {
			raw, err := SampleGenotype(trait, sex, rng)
			if err != nil {
				return nil, err
			}
			g, err := genetics.Parse(raw, trait.Type, sex)
			if err != nil {
				return nil, fmt.Errorf("trait %d genotype %q: %w", trait.ID, raw, err)
			}
			ind.SetGenotype(trait.ID, g)
		}
		ind.Lifespan = genetics.UniformInt(rng, arch.LifespanMin, arch.LifespanMax)
		ind.BirthCycle = -genetics.UniformInt(rng, 1, ind.Lifespan)
		ind.MaturityCycle = min(0, ind.BirthCycle+arch.MaturityCycles)
		ind.FertilityEnd = ind.BirthCycle + arch.FertilityCycles(sex)
		if len(breederIDs) > 0 {
			ind.BreederID = breederIDs[i%len(breederIDs)]
		}
		out = append(out, ind)
	}
	return out, nil
}

// SampleGenotype draws a genotype string for a trait by cumulative initial
// frequency among the entries that apply to the sex.
func SampleGenotype(trait domain.Trait, sex domain.Sex, rng *rand.Rand) (string, error) {
	var entries []domain.GenotypeEntry
	total := 0.0
	for _, e := range trait.Genotypes {
		if e.Sex != "" && e.Sex != sex {
			continue
		}
		entries = append(entries, e)
		total += e.InitialFrequency
	}
	if len(entries) == 0 || total <= 0 {
		return "", fmt.Errorf("trait %d has no %s genotypes with positive frequency", trait.ID, sex)
	}
	r := rng.Float64() * total
	acc := 0.0
	for _, e := range entries {
		acc += e.InitialFrequency
		if r < acc {
			return e.Genotype, nil
		}
	}
	return entries[len(entries)-1].Genotype, nil
}
