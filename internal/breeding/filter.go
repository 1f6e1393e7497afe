package breeding

import (
	"math/rand/v2"
	"strconv"

	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// filter carries the policy checks shared by every variant.
type filter struct {
	traits map[int]domain.Trait
	policy domain.BreederPolicy
}

func newFilter(traits []domain.Trait, policy domain.BreederPolicy) filter {
	byID := make(map[int]domain.Trait, len(traits))
	for _, t := range traits {
		byID[t.ID] = t
	}
	return filter{traits: byID, policy: policy}
}

func (f filter) phenotype(ind *creature.Individual, traitID int) (string, bool) {
	trait, ok := f.traits[traitID]
	if !ok {
		return "", false
	}
	return ind.Phenotype(trait)
}

// undesirablePhenotypes counts configured undesirable phenotypes the
// individual expresses, ignoring the avoidance flag.
func (f filter) undesirablePhenotypes(ind *creature.Individual) int {
	n := 0
	for _, u := range f.policy.UndesirablePhenotypes {
		if ph, ok := f.phenotype(ind, u.TraitID); ok && ph == u.Phenotype {
			n++
		}
	}
	return n
}

// carriesUndesirableGenotype ignores the avoidance flag.
func (f filter) carriesUndesirableGenotype(ind *creature.Individual) bool {
	for _, u := range f.policy.UndesirableGenotypes {
		if g, ok := ind.GenotypeString(u.TraitID); ok && g == u.Genotype {
			return true
		}
	}
	return false
}

func (f filter) hasUndesirablePhenotype(ind *creature.Individual) bool {
	return f.policy.AvoidUndesirablePheno && f.undesirablePhenotypes(ind) > 0
}

func (f filter) hasUndesirableGenotype(ind *creature.Individual) bool {
	return f.policy.AvoidUndesirableGeno && f.carriesUndesirableGenotype(ind)
}

// withoutUndesirable drops individuals flagged by the enabled avoidance checks.
func (f filter) withoutUndesirable(list []*creature.Individual) []*creature.Individual {
	return keep(list, func(ind *creature.Individual) bool {
		return !f.hasUndesirablePhenotype(ind) && !f.hasUndesirableGenotype(ind)
	})
}

// failOpen applies withoutUndesirable and falls back to the input when
// nothing survives.
func (f filter) failOpen(list []*creature.Individual) []*creature.Individual {
	return orElse(f.withoutUndesirable(list), list)
}

// matchesTargets reports whether every target phenotype is expressed.
func (f filter) matchesTargets(ind *creature.Individual) bool {
	for _, target := range f.policy.TargetPhenotypes {
		ph, ok := f.phenotype(ind, target.TraitID)
		if !ok || ph != target.Phenotype {
			return false
		}
	}
	return true
}

func (f filter) preferTargets(list []*creature.Individual) []*creature.Individual {
	return orElse(keep(list, f.matchesTargets), list)
}

// targetMatches counts matched target phenotypes.
func (f filter) targetMatches(ind *creature.Individual) int {
	n := 0
	for _, target := range f.policy.TargetPhenotypes {
		if ph, ok := f.phenotype(ind, target.TraitID); ok && ph == target.Phenotype {
			n++
		}
	}
	return n
}

// withinRanges checks numeric phenotypes against the configured ranges.
func (f filter) withinRanges(ind *creature.Individual) bool {
	for _, r := range f.policy.PhenotypeRanges {
		ph, ok := f.phenotype(ind, r.TraitID)
		if !ok {
			return false
		}
		v, err := strconv.ParseFloat(ph, 64)
		if err != nil {
			continue
		}
		if v < r.Min || v > r.Max {
			return false
		}
	}
	return true
}

// replacement is the default replacement choice: a random candidate of the
// sex, avoiding undesirable individuals when any remain.
func (f filter) replacement(candidates []*creature.Individual, sex domain.Sex, rng *rand.Rand) *creature.Individual {
	pool := ofSex(candidates, sex)
	if len(pool) == 0 {
		return nil
	}
	return genetics.Choice(rng, f.failOpen(pool))
}

func randomPairs(males, females []*creature.Individual, count int, rng *rand.Rand) []Pair {
	pairs := make([]Pair, 0, count)
	for i := 0; i < count; i++ {
		male := genetics.Choice(rng, males)
		female := genetics.Choice(rng, females)
		pairs = append(pairs, Pair{Male: male, Female: female})
	}
	return pairs
}

func keep(list []*creature.Individual, pred func(*creature.Individual) bool) []*creature.Individual {
	var out []*creature.Individual
	for _, ind := range list {
		if pred(ind) {
			out = append(out, ind)
		}
	}
	return out
}

func orElse(list, fallback []*creature.Individual) []*creature.Individual {
	if len(list) == 0 {
		return fallback
	}
	return list
}

func ofSex(list []*creature.Individual, sex domain.Sex) []*creature.Individual {
	return keep(list, func(ind *creature.Individual) bool { return ind.Sex == sex })
}
