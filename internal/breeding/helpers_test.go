package breeding

import (
	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

var sizeTrait = domain.Trait{ID: 0, Name: "Size", Type: domain.TraitSimpleMendelian, Genotypes: []domain.GenotypeEntry{
	{Genotype: "SS", Phenotype: "Large", InitialFrequency: 0.25},
	{Genotype: "Ss", Phenotype: "Medium", InitialFrequency: 0.5},
	{Genotype: "ss", Phenotype: "Small", InitialFrequency: 0.25},
}}

var hipsTrait = domain.Trait{ID: 1, Name: "Hips", Type: domain.TraitSimpleMendelian, Genotypes: []domain.GenotypeEntry{
	{Genotype: "HH", Phenotype: "Sound", InitialFrequency: 0.5},
	{Genotype: "Hh", Phenotype: "Sound", InitialFrequency: 0.3},
	{Genotype: "hh", Phenotype: "Dysplastic", InitialFrequency: 0.2},
}}

var testTraits = []domain.Trait{sizeTrait, hipsTrait}

var sizePreference = domain.GenotypePreference{
	TraitID:     0,
	Optimal:     []string{"SS"},
	Acceptable:  []string{"Ss"},
	Undesirable: []string{"ss"},
}

// animal builds a mature individual; genotypes are listed by trait id.
func animal(id int64, sex domain.Sex, genotypes ...string) *creature.Individual {
	ind := &creature.Individual{
		ID:           id,
		SimulationID: 1,
		Sex:          sex,
		Alive:        true,
		Lifespan:     200,
		FertilityEnd: 100,
		BreederID:    1,
	}
	for traitID, g := range genotypes {
		ind.SetGenotype(traitID, genetics.MustParse(g, domain.TraitSimpleMendelian, sex))
	}
	return ind
}

func males(genotypes ...string) []*creature.Individual {
	out := make([]*creature.Individual, 0, len(genotypes))
	for i, g := range genotypes {
		out = append(out, animal(int64(100+i), domain.SexMale, g, "HH"))
	}
	return out
}

func females(genotypes ...string) []*creature.Individual {
	out := make([]*creature.Individual, 0, len(genotypes))
	for i, g := range genotypes {
		out = append(out, animal(int64(200+i), domain.SexFemale, g, "HH"))
	}
	return out
}
