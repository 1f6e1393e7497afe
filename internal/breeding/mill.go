package breeding

import (
	"math/rand/v2"

	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// HighVolume always screens out undesirable phenotypes, whatever the
// avoidance flag says, and prefers target phenotypes.
type HighVolume struct {
	filter filter
}

func (*HighVolume) Variant() domain.BreederVariant { return domain.VariantHighVolume }

func (*HighVolume) Retention() RetentionPolicy { return RetentionPolicy{} }

// screen drops individuals with undesirable phenotypes (and genotypes when
// that flag is set). When nothing survives it keeps the individuals with the
// fewest undesirable phenotypes; undesirable genotypes do not count there.
func (h *HighVolume) screen(list []*creature.Individual) []*creature.Individual {
	clean := keep(list, func(ind *creature.Individual) bool {
		return h.filter.undesirablePhenotypes(ind) == 0 && !h.filter.hasUndesirableGenotype(ind)
	})
	if len(clean) > 0 {
		return clean
	}
	fewest := -1
	var out []*creature.Individual
	for _, ind := range list {
		n := h.filter.undesirablePhenotypes(ind)
		switch {
		case fewest < 0 || n < fewest:
			fewest = n
			out = []*creature.Individual{ind}
		case n == fewest:
			out = append(out, ind)
		}
	}
	return out
}

func (h *HighVolume) SelectPairs(males, females []*creature.Individual, count int, rng *rand.Rand) []Pair {
	if len(males) == 0 || len(females) == 0 || count <= 0 {
		return nil
	}
	males = h.filter.preferTargets(h.screen(males))
	females = h.filter.preferTargets(h.screen(females))
	return randomPairs(males, females, count, rng)
}

// SelectReplacement never accepts a candidate with an undesirable phenotype.
func (h *HighVolume) SelectReplacement(candidates []*creature.Individual, sex domain.Sex, rng *rand.Rand) *creature.Individual {
	pool := keep(ofSex(candidates, sex), func(ind *creature.Individual) bool {
		return h.filter.undesirablePhenotypes(ind) == 0
	})
	if len(pool) == 0 {
		return nil
	}
	return genetics.Choice(rng, h.filter.preferTargets(pool))
}
