package breeding

import (
	"math/rand/v2"

	"genesim/internal/creature"
	"genesim/pkg/domain"
)

// Unselective pairs uniformly at random, with replacement.
type Unselective struct {
	filter filter
}

func (*Unselective) Variant() domain.BreederVariant { return domain.VariantUnselective }

func (*Unselective) Retention() RetentionPolicy { return RetentionPolicy{} }

func (u *Unselective) SelectPairs(males, females []*creature.Individual, count int, rng *rand.Rand) []Pair {
	if len(males) == 0 || len(females) == 0 || count <= 0 {
		return nil
	}
	return randomPairs(u.filter.failOpen(males), u.filter.failOpen(females), count, rng)
}

func (u *Unselective) SelectReplacement(candidates []*creature.Individual, sex domain.Sex, rng *rand.Rand) *creature.Individual {
	return u.filter.replacement(candidates, sex, rng)
}
