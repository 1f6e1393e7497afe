package config

import "genesim/pkg/domain"

// Cycles returns the run length in cycles.
func (c *Config) Cycles() int {
	return YearsToCycles(c.Years, c.CreatureArchetype.MenstrualCycleDays)
}

// Archetype converts the life history into cycle units.
func (c *Config) Archetype() domain.Archetype {
	a := c.CreatureArchetype
	days := a.MenstrualCycleDays
	return domain.Archetype{
		GestationCycles:    DaysToCycles(a.GestationPeriodDays, days),
		NursingCycles:      DaysToCycles(a.NursingPeriodDays, days),
		MaturityCycles:     MonthsToCycles(a.SexualMaturityMonths, days),
		MaxFertilityMale:   YearsToCycles(a.MaxFertilityAgeYears.Male, days),
		MaxFertilityFemale: YearsToCycles(a.MaxFertilityAgeYears.Female, days),
		LifespanMin:        YearsToCycles(a.Lifespan.Min, days),
		LifespanMax:        YearsToCycles(a.Lifespan.Max, days),
		LitterMin:          a.LitterSize.Min,
		LitterMax:          a.LitterSize.Max,
		NearingEndCycles:   a.NearingEndCycles,
	}
}

// BreederSpecs expands the per-variant counts in allocation order.
func (c *Config) BreederSpecs() []domain.BreederSpec {
	specs := make([]domain.BreederSpec, 0, c.Breeders.Total())
	for _, v := range domain.Variants {
		for i := 0; i < c.Breeders.Count(v); i++ {
			specs = append(specs, domain.BreederSpec{Variant: v, MaxCreatures: c.Breeders.MaxCreatures})
		}
	}
	return specs
}

// Policy assembles the breeding policy shared by every strategy.
func (c *Config) Policy() domain.BreederPolicy {
	p := domain.BreederPolicy{
		TargetPhenotypes:      c.TargetPhenotypes,
		UndesirablePhenotypes: c.UndesirablePhenotypes,
		UndesirableGenotypes:  c.UndesirableGenotypes,
		GenotypePreferences:   c.GenotypePreferences,
		AvoidUndesirablePheno: c.Breeders.AvoidUndesirablePhenotypes,
		AvoidUndesirableGeno:  c.Breeders.AvoidUndesirableGenotypes,
	}
	if kc := c.Breeders.KennelClubConfig; kc != nil {
		p.PhenotypeRanges = kc.RequiredPhenotypeRanges
		p.MaxInbreeding = kc.MaxInbreedingCoefficient
	}
	return p
}

// ToSimulation converts a validated configuration into the cycle-unit form
// consumed by the simulation service.
func (c *Config) ToSimulation() domain.SimulationConfig {
	return domain.SimulationConfig{
		Seed:                   c.Seed,
		Cycles:                 c.Cycles(),
		InitialPopulation:      c.InitialPopulationSize,
		FemaleRatio:            c.InitialSexRatio.Female,
		Mode:                   c.Mode,
		Archetype:              c.Archetype(),
		Traits:                 c.Traits,
		Breeders:               c.BreederSpecs(),
		Policy:                 c.Policy(),
		AvoidanceMaxInbreeding: c.Breeders.AvoidanceMaxInbreeding,
		Transfer: domain.TransferSettings{
			SelectiveClubMale:            c.Breeders.KennelMaleTransferProb,
			SelectiveClubFemaleTransfers: c.Breeders.KennelFemaleTransferCount,
			HighVolume:                   c.Breeders.MillTransferProbability,
			Default:                      c.Breeders.BaselineTransferProb,
			MaxPerCycle:                  c.Breeders.MaxTransfersPerCycle,
		},
		CullFraction:      c.Breeders.NonBreederHomingFraction,
		ReplacementBuffer: c.Breeders.ReplacementBufferCycles,
	}
}
