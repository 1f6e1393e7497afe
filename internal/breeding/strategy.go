// Package breeding implements the mate-selection and replacement policies
// of the four breeder variants.
package breeding

import (
	"fmt"
	"math/rand/v2"

	"genesim/internal/creature"
	"genesim/pkg/domain"
)

// Pair is one selected mating.
type Pair struct {
	Male   *creature.Individual
	Female *creature.Individual
}

// Strategy selects mating pairs and replacements. Implementations hold no
// state between calls other than memoized scores.
type Strategy interface {
	Variant() domain.BreederVariant
	SelectPairs(males, females []*creature.Individual, count int, rng *rand.Rand) []Pair
	SelectReplacement(candidates []*creature.Individual, sex domain.Sex, rng *rand.Rand) *creature.Individual
	Retention() RetentionPolicy
}

// Grader ranks individuals against a breeder's genotype preferences.
type Grader interface {
	// Optimal reports whether every preferred trait carries an optimal genotype.
	Optimal(ind *creature.Individual) bool
	// SubOptimal reports whether the individual should be proactively replaced.
	SubOptimal(ind *creature.Individual) bool
	EvaluateOffspringVsParents(offspring, parents []*creature.Individual, rng *rand.Rand) Evaluation
}

// RetentionPolicy describes how a breeder manages its own stock.
type RetentionPolicy struct {
	// Grader is non-nil for breeders that flag sub-optimal stock for
	// proactive replacement and home a flagged parent when an optimal
	// offspring is retained.
	Grader Grader
}

// Proactive reports whether the breeder replaces sub-optimal stock.
func (r RetentionPolicy) Proactive() bool { return r.Grader != nil }

// Breeder is a persisted breeder bound to its strategy.
type Breeder struct {
	ID           int64
	MaxCreatures int
	Strategy
}

// New constructs the strategy for a variant.
func New(variant domain.BreederVariant, traits []domain.Trait, policy domain.BreederPolicy, avoidanceCeiling float64) (Strategy, error) {
	f := newFilter(traits, policy)
	switch variant {
	case domain.VariantUnselective:
		return &Unselective{filter: f}, nil
	case domain.VariantInbreedingAvoidance:
		return &InbreedingAvoidance{filter: f, MaxInbreeding: avoidanceCeiling}, nil
	case domain.VariantSelectiveClub:
		return NewSelectiveClub(traits, policy), nil
	case domain.VariantHighVolume:
		return &HighVolume{filter: f}, nil
	}
	return nil, fmt.Errorf("unknown breeder variant %q", variant)
}
