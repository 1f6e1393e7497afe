package breeding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

func clubPolicy() domain.BreederPolicy {
	return domain.BreederPolicy{
		TargetPhenotypes:    []domain.PhenotypeTarget{{TraitID: 0, Phenotype: "Large"}},
		GenotypePreferences: []domain.GenotypePreference{sizePreference},
	}
}

func TestPairScore(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	cases := []struct {
		male, female string
		want         float64
	}{
		{"SS", "SS", 100},
		{"SS", "Ss", 55},
		{"Ss", "SS", 55},
		{"Ss", "Ss", 17.5},
		{"ss", "ss", -50},
	}
	for _, tc := range cases {
		t.Run(tc.male+"x"+tc.female, func(t *testing.T) {
			m := animal(1, domain.SexMale, tc.male)
			f := animal(2, domain.SexFemale, tc.female)
			assert.InDelta(t, tc.want, club.PairScore(m, f), 1e-9)
		})
	}
}

func TestPairScoreCachedPerUnorderedGenotypes(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	club.PairScore(animal(1, domain.SexMale, "SS"), animal(2, domain.SexFemale, "Ss"))
	club.PairScore(animal(3, domain.SexMale, "Ss"), animal(4, domain.SexFemale, "SS"))
	assert.Equal(t, 1, club.scores.ItemCount())
}

func TestSelectiveClubPrefersOptimalTier(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	pairs := club.SelectPairs(males("Ss", "SS"), females("ss", "SS", "Ss"), 3, genetics.NewRand(1))
	require.Len(t, pairs, 3)
	for _, p := range pairs {
		assert.Equal(t, "SS", p.Male.Genome[0].String())
		assert.Equal(t, "SS", p.Female.Genome[0].String())
	}
}

func TestSelectiveClubNonOverlappingBestPairs(t *testing.T) {
	club := NewSelectiveClub(testTraits, domain.BreederPolicy{GenotypePreferences: []domain.GenotypePreference{sizePreference}})
	ms := males("SS", "Ss")
	fs := females("Ss", "Ss")

	pairs := club.SelectPairs(ms, fs, 2, genetics.NewRand(1))
	require.Len(t, pairs, 2)
	assert.Same(t, ms[0], pairs[0].Male)
	assert.Same(t, fs[0], pairs[0].Female)
	assert.Same(t, ms[1], pairs[1].Male)
	assert.Same(t, fs[1], pairs[1].Female)
}

func TestSelectiveClubReusesPairsWhenShort(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	pairs := club.SelectPairs(males("SS"), females("SS"), 3, genetics.NewRand(1))
	assert.Len(t, pairs, 3)
}

func TestSelectiveClubInbreedingCeiling(t *testing.T) {
	ceiling := 0.1
	policy := clubPolicy()
	policy.MaxInbreeding = &ceiling
	club := NewSelectiveClub(testTraits, policy)

	brother := animal(10, domain.SexMale, "SS")
	brother.Parent1ID, brother.Parent2ID = 1, 2
	sister := animal(11, domain.SexFemale, "SS")
	sister.Parent1ID, sister.Parent2ID = 1, 2
	stranger := animal(12, domain.SexFemale, "SS")

	pairs := club.SelectPairs([]*creature.Individual{brother}, []*creature.Individual{sister, stranger}, 2, genetics.NewRand(1))
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Same(t, stranger, p.Female)
	}

	// Only related candidates left: fill at random rather than return nothing.
	pairs = club.SelectPairs([]*creature.Individual{brother}, []*creature.Individual{sister}, 1, genetics.NewRand(1))
	require.Len(t, pairs, 1)
	assert.Same(t, sister, pairs[0].Female)
}

func TestSelectiveClubPhenotypeRanges(t *testing.T) {
	weight := domain.Trait{ID: 0, Name: "Weight", Type: domain.TraitSimpleMendelian, Genotypes: []domain.GenotypeEntry{
		{Genotype: "WW", Phenotype: "30", InitialFrequency: 0.25},
		{Genotype: "Ww", Phenotype: "20", InitialFrequency: 0.5},
		{Genotype: "ww", Phenotype: "10", InitialFrequency: 0.25},
	}}
	policy := domain.BreederPolicy{PhenotypeRanges: []domain.PhenotypeRange{{TraitID: 0, Min: 15, Max: 25}}}
	club := NewSelectiveClub([]domain.Trait{weight}, policy)

	heavy := animal(1, domain.SexMale, "WW")
	mid := animal(2, domain.SexMale, "Ww")
	dam := animal(3, domain.SexFemale, "Ww")
	pairs := club.SelectPairs([]*creature.Individual{heavy, mid}, []*creature.Individual{dam}, 2, genetics.NewRand(8))
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Same(t, mid, p.Male)
	}
}

func TestSelectiveClubTieredReplacement(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	best := animal(1, domain.SexMale, "SS")
	candidates := []*creature.Individual{animal(2, domain.SexMale, "Ss"), best, animal(3, domain.SexMale, "ss"), animal(4, domain.SexFemale, "SS")}
	assert.Same(t, best, club.SelectReplacement(candidates, domain.SexMale, genetics.NewRand(1)))
}

func TestSelectiveClubLegacyReplacement(t *testing.T) {
	policy := domain.BreederPolicy{
		TargetPhenotypes:     []domain.PhenotypeTarget{{TraitID: 0, Phenotype: "Large"}},
		UndesirableGenotypes: []domain.GenotypeTarget{{TraitID: 0, Genotype: "ss"}},
	}
	club := NewSelectiveClub(testTraits, policy)
	large := animal(1, domain.SexFemale, "SS")
	medium := animal(2, domain.SexFemale, "Ss")
	small := animal(3, domain.SexFemale, "ss")

	assert.Same(t, large, club.SelectReplacement([]*creature.Individual{small, medium, large}, domain.SexFemale, genetics.NewRand(1)))
	assert.Nil(t, club.SelectReplacement([]*creature.Individual{small}, domain.SexFemale, genetics.NewRand(1)))
}

func TestSelectiveClubGrading(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	assert.True(t, club.Optimal(animal(1, domain.SexMale, "SS")))
	assert.False(t, club.SubOptimal(animal(1, domain.SexMale, "SS")))
	assert.True(t, club.SubOptimal(animal(2, domain.SexMale, "Ss")))
	assert.True(t, club.SubOptimal(animal(3, domain.SexMale)))

	legacy := NewSelectiveClub(testTraits, domain.BreederPolicy{
		UndesirableGenotypes: []domain.GenotypeTarget{{TraitID: 0, Genotype: "ss"}},
		AvoidUndesirableGeno: true,
	})
	assert.True(t, legacy.Optimal(animal(4, domain.SexMale, "ss")))
	assert.True(t, legacy.SubOptimal(animal(4, domain.SexMale, "ss")))
	assert.False(t, legacy.SubOptimal(animal(5, domain.SexMale, "Ss")))
}

func TestEvaluateOffspringVsParents(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	sire := animal(1, domain.SexMale, "Ss")
	dam := animal(2, domain.SexFemale, "ss")
	best := animal(3, domain.SexMale, "SS")
	middle := animal(4, domain.SexFemale, "Ss")
	worst := animal(5, domain.SexMale, "ss")

	got := club.EvaluateOffspringVsParents([]*creature.Individual{best, middle, worst}, []*creature.Individual{sire, dam}, genetics.NewRand(42))
	assert.Equal(t, []*creature.Individual{best}, got.Keep)
	assert.Equal(t, []*creature.Individual{dam}, got.Trade)
	assert.ElementsMatch(t, []*creature.Individual{middle, worst}, got.Release)
}

func TestEvaluateOffspringKeepsOptimalOverSubOptimalParent(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	kid := animal(3, domain.SexMale, "SS")
	parent := animal(1, domain.SexMale, "Ss")

	got := club.EvaluateOffspringVsParents([]*creature.Individual{kid}, []*creature.Individual{parent}, genetics.NewRand(1))
	assert.Equal(t, []*creature.Individual{kid}, got.Keep)
	assert.Equal(t, []*creature.Individual{parent}, got.Trade)
	assert.Empty(t, got.Release)
	assert.NotContains(t, got.Keep, parent)
	assert.NotContains(t, got.Trade, kid)
}

func TestEvaluateOffspringBoundedByParents(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	var parents, offspring []*creature.Individual
	for i := 0; i < 5; i++ {
		parents = append(parents, animal(int64(i+1), domain.SexFemale, "ss"))
	}
	for i := 0; i < 10; i++ {
		offspring = append(offspring, animal(int64(i+10), domain.SexFemale, "SS"))
	}

	got := club.EvaluateOffspringVsParents(offspring, parents, genetics.NewRand(42))
	assert.Len(t, got.Keep, 5)
	assert.Len(t, got.Trade, 5)
	assert.Len(t, got.Release, 5)
}

func TestEvaluateOffspringEdgeCases(t *testing.T) {
	club := NewSelectiveClub(testTraits, clubPolicy())
	parents := []*creature.Individual{animal(1, domain.SexMale, "Ss")}
	offspring := []*creature.Individual{animal(2, domain.SexMale, "SS"), animal(3, domain.SexFemale, "ss")}

	empty := club.EvaluateOffspringVsParents(nil, parents, genetics.NewRand(1))
	assert.Empty(t, empty.Keep)
	assert.Empty(t, empty.Trade)
	assert.Empty(t, empty.Release)

	orphans := club.EvaluateOffspringVsParents(offspring, nil, genetics.NewRand(1))
	assert.Empty(t, orphans.Keep)
	assert.Empty(t, orphans.Trade)
	assert.Equal(t, offspring, orphans.Release)
}
