package breeding

import (
	"math/rand/v2"

	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// DefaultMaxInbreeding is the offspring inbreeding ceiling used by
// InbreedingAvoidance breeders.
const DefaultMaxInbreeding = 0.25

// attemptsPerPair bounds rejection sampling for constrained pairing.
const attemptsPerPair = 100

// InbreedingAvoidance pairs at random but rejects pairs whose offspring
// would exceed MaxInbreeding, up to a bounded number of attempts.
type InbreedingAvoidance struct {
	filter        filter
	MaxInbreeding float64
}

func (*InbreedingAvoidance) Variant() domain.BreederVariant {
	return domain.VariantInbreedingAvoidance
}

func (*InbreedingAvoidance) Retention() RetentionPolicy { return RetentionPolicy{} }

func (a *InbreedingAvoidance) SelectPairs(males, females []*creature.Individual, count int, rng *rand.Rand) []Pair {
	if len(males) == 0 || len(females) == 0 || count <= 0 {
		return nil
	}
	males = a.filter.failOpen(males)
	females = a.filter.failOpen(females)

	pairs := make([]Pair, 0, count)
	for attempts := 0; len(pairs) < count && attempts < count*attemptsPerPair; attempts++ {
		male := genetics.Choice(rng, males)
		female := genetics.Choice(rng, females)
		if genetics.Inbreeding(male, female) <= a.MaxInbreeding {
			pairs = append(pairs, Pair{Male: male, Female: female})
		}
	}
	return append(pairs, randomPairs(males, females, count-len(pairs), rng)...)
}

func (a *InbreedingAvoidance) SelectReplacement(candidates []*creature.Individual, sex domain.Sex, rng *rand.Rand) *creature.Individual {
	return a.filter.replacement(candidates, sex, rng)
}
