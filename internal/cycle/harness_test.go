package cycle

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"genesim/internal/breeding"
	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/internal/infra/persistence/memory"
	"genesim/internal/population"
	"genesim/pkg/domain"
)

var coat = domain.Trait{ID: 0, Name: "Coat", Type: domain.TraitSimpleMendelian, Genotypes: []domain.GenotypeEntry{
	{Genotype: "BB", Phenotype: "Black", InitialFrequency: 0.3},
	{Genotype: "Bb", Phenotype: "Black", InitialFrequency: 0.4},
	{Genotype: "bb", Phenotype: "Brown", InitialFrequency: 0.3},
}}

func testConfig(seed uint64) domain.SimulationConfig {
	return domain.SimulationConfig{
		Seed:              seed,
		Cycles:            12,
		InitialPopulation: 60,
		FemaleRatio:       0.5,
		Archetype: domain.Archetype{
			GestationCycles:    2,
			NursingCycles:      2,
			MaturityCycles:     6,
			MaxFertilityMale:   60,
			MaxFertilityFemale: 50,
			LifespanMin:        40,
			LifespanMax:        80,
			LitterMin:          2,
			LitterMax:          5,
			NearingEndCycles:   4,
		},
		Traits: []domain.Trait{coat},
		Breeders: []domain.BreederSpec{
			{Variant: domain.VariantUnselective, MaxCreatures: 30},
			{Variant: domain.VariantInbreedingAvoidance, MaxCreatures: 30},
			{Variant: domain.VariantSelectiveClub, MaxCreatures: 30},
			{Variant: domain.VariantHighVolume, MaxCreatures: 30},
		},
		Policy: domain.BreederPolicy{
			TargetPhenotypes:      []domain.PhenotypeTarget{{TraitID: 0, Phenotype: "Black"}},
			UndesirablePhenotypes: []domain.PhenotypeTarget{{TraitID: 0, Phenotype: "Brown"}},
			GenotypePreferences: []domain.GenotypePreference{
				{TraitID: 0, Optimal: []string{"BB"}, Acceptable: []string{"Bb"}, Undesirable: []string{"bb"}},
			},
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

type harness struct {
	store *memory.Store
	simID int64
	orch  *Orchestrator
}

// seeder returns the initial stock of a run. Returned individuals are
// persisted by the harness.
type seeder func(t *testing.T, cfg domain.SimulationConfig, breeders []*breeding.Breeder, rng *rand.Rand) []*creature.Individual

func founders(t *testing.T, cfg domain.SimulationConfig, breeders []*breeding.Breeder, rng *rand.Rand) []*creature.Individual {
	t.Helper()
	ids := make([]int64, 0, len(breeders))
	for _, b := range breeders {
		ids = append(ids, b.ID)
	}
	out, err := creature.CreateFounders(cfg, ids, rng)
	require.NoError(t, err)
	return out
}

func createBreeders(t *testing.T, store domain.PersistentStore, simID int64, cfg domain.SimulationConfig) []*breeding.Breeder {
	t.Helper()
	var out []*breeding.Breeder
	for _, spec := range cfg.Breeders {
		id, err := store.CreateBreeder(context.Background(), simID, spec)
		require.NoError(t, err)
		s, err := breeding.New(spec.Variant, cfg.Traits, cfg.Policy, cfg.AvoidanceMaxInbreeding)
		require.NoError(t, err)
		out = append(out, &breeding.Breeder{ID: id, MaxCreatures: spec.MaxCreatures, Strategy: s})
	}
	return out
}

func newHarness(t *testing.T, cfg domain.SimulationConfig, opts ...Option) *harness {
	t.Helper()
	return seededHarness(t, cfg, founders, opts...)
}

// seededHarness positions an orchestrator at cycle zero over the stock
// returned by seed.
func seededHarness(t *testing.T, cfg domain.SimulationConfig, seed seeder, opts ...Option) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	simID, err := store.CreateSimulation(ctx, domain.SimulationRecord{Seed: cfg.Seed, Cycles: cfg.Cycles})
	require.NoError(t, err)
	require.NoError(t, store.CreateTraits(ctx, simID, cfg.Traits))
	breeders := createBreeders(t, store, simID, cfg)
	rng := genetics.NewRand(cfg.Seed)
	stock := seed(t, cfg, breeders, rng)
	for _, ind := range stock {
		ind.SimulationID = simID
		id, err := store.CreateIndividual(ctx, ind.Record())
		require.NoError(t, err)
		ind.ID = id
	}
	pop := population.New(0)
	pop.Add(stock...)
	return &harness{store: store, simID: simID, orch: New(store, simID, cfg, breeders, pop, rng, opts...)}
}

// adult builds a proven-age individual with a long remaining life.
func adult(sex domain.Sex, breederID int64, genotype string) *creature.Individual {
	ind := &creature.Individual{
		Sex:          sex,
		Alive:        true,
		BirthCycle:   -10,
		Lifespan:     500,
		FertilityEnd: 400,
		BreederID:    breederID,
	}
	ind.SetGenotype(0, genetics.MustParse(genotype, domain.TraitSimpleMendelian, sex))
	return ind
}

func (h *harness) run(t *testing.T, cycles int) []Outcome {
	t.Helper()
	var out []Outcome
	for i := 0; i < cycles; i++ {
		before := h.orch.Population().Len()
		res, err := h.orch.Run(context.Background())
		require.NoError(t, err)
		s := res.Stats
		require.Equal(t, before+s.Births-s.Deaths-s.HomedOut, h.orch.Population().Len(), "cycle %d conservation", s.Cycle)
		out = append(out, res)
	}
	return out
}

func createdRecords(changes []domain.Change) []domain.IndividualRecord {
	var out []domain.IndividualRecord
	for _, c := range changes {
		if c.Entity != domain.EntityIndividual || c.Action != domain.ActionCreate {
			continue
		}
		if rec, ok := c.After.(domain.IndividualRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}
