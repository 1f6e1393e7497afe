package breeding

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/patrickmn/go-cache"

	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// Expected-outcome weights for pairing scores.
const (
	optimalWeight     = 100.0
	acceptableWeight  = 10.0
	undesirableWeight = -50.0
)

// Replacement scoring.
const (
	optimalPoints    = 100
	acceptablePoints = 10
	targetBonus      = 5
	legacyTargetHit  = 10
	homozygousBonus  = 5
)

// Evaluation buckets offspring and parents after a quality comparison.
type Evaluation struct {
	Keep    []*creature.Individual
	Trade   []*creature.Individual
	Release []*creature.Individual
}

// SelectiveClub breeds toward tiered genotype preferences, ranking candidate
// pairs by the expected preference score of their offspring. Without
// preferences it avoids the configured undesirable genotypes instead.
type SelectiveClub struct {
	filter filter
	prefs  []domain.GenotypePreference
	scores *cache.Cache
}

// NewSelectiveClub returns a club strategy for the trait catalog and policy.
func NewSelectiveClub(traits []domain.Trait, policy domain.BreederPolicy) *SelectiveClub {
	return &SelectiveClub{
		filter: newFilter(traits, policy),
		prefs:  policy.GenotypePreferences,
		scores: cache.New(cache.NoExpiration, 0),
	}
}

func (*SelectiveClub) Variant() domain.BreederVariant { return domain.VariantSelectiveClub }

func (c *SelectiveClub) Retention() RetentionPolicy { return RetentionPolicy{Grader: c} }

func (c *SelectiveClub) tier(ind *creature.Individual, pref domain.GenotypePreference) int {
	g, ok := ind.GenotypeString(pref.TraitID)
	if !ok {
		return 3
	}
	return pref.Tier(g)
}

// Optimal reports whether every preferred trait carries an optimal genotype.
// Without preferences every individual is optimal.
func (c *SelectiveClub) Optimal(ind *creature.Individual) bool {
	for _, pref := range c.prefs {
		if c.tier(ind, pref) != 0 {
			return false
		}
	}
	return true
}

// SubOptimal flags stock for proactive replacement: any non-optimal tier, or
// an avoided undesirable genotype when no preferences are configured.
func (c *SelectiveClub) SubOptimal(ind *creature.Individual) bool {
	if len(c.prefs) == 0 {
		return c.filter.hasUndesirableGenotype(ind)
	}
	return !c.Optimal(ind)
}

func (c *SelectiveClub) acceptableOrBetter(ind *creature.Individual) bool {
	for _, pref := range c.prefs {
		if c.tier(ind, pref) == 2 {
			return false
		}
	}
	return true
}

// narrow restricts both sexes to the best tier both can fill.
func (c *SelectiveClub) narrow(males, females []*creature.Individual) ([]*creature.Individual, []*creature.Individual) {
	if len(c.prefs) == 0 {
		clean := func(ind *creature.Individual) bool { return !c.filter.carriesUndesirableGenotype(ind) }
		return orElse(keep(males, clean), males), orElse(keep(females, clean), females)
	}
	om, of := keep(males, c.Optimal), keep(females, c.Optimal)
	if len(om) > 0 && len(of) > 0 {
		return om, of
	}
	am, af := keep(males, c.acceptableOrBetter), keep(females, c.acceptableOrBetter)
	if len(am) > 0 && len(af) > 0 {
		return am, af
	}
	return males, females
}

// PairScore is the expected preference score of a mating's offspring,
// summed across preferred traits.
func (c *SelectiveClub) PairScore(male, female *creature.Individual) float64 {
	total := 0.0
	for _, pref := range c.prefs {
		m, f := male.Genotype(pref.TraitID), female.Genotype(pref.TraitID)
		if m == nil || f == nil {
			continue
		}
		total += c.traitScore(pref, f, m)
	}
	return total
}

func (c *SelectiveClub) traitScore(pref domain.GenotypePreference, female, male genetics.Genotype) float64 {
	a, b := female.String(), male.String()
	if b < a {
		a, b = b, a
	}
	key := fmt.Sprintf("%d|%s|%s", pref.TraitID, a, b)
	if v, ok := c.scores.Get(key); ok {
		return v.(float64)
	}
	outcomes, err := genetics.Punnett(female, male)
	if err != nil {
		return 0
	}
	score := 0.0
	for _, o := range outcomes {
		switch pref.Tier(o.Genotype) {
		case 0:
			score += optimalWeight * o.Probability
		case 1:
			score += acceptableWeight * o.Probability
		case 2:
			score += undesirableWeight * o.Probability
		}
	}
	c.scores.Set(key, score, cache.NoExpiration)
	return score
}

type scoredPair struct {
	Pair
	score float64
}

func (c *SelectiveClub) SelectPairs(males, females []*creature.Individual, count int, rng *rand.Rand) []Pair {
	if len(males) == 0 || len(females) == 0 || count <= 0 {
		return nil
	}
	filteredMales, filteredFemales := c.narrow(males, females)
	if c.filter.policy.AvoidUndesirablePheno {
		clean := func(ind *creature.Individual) bool { return !c.filter.hasUndesirablePhenotype(ind) }
		filteredMales = keep(filteredMales, clean)
		filteredFemales = keep(filteredFemales, clean)
		if len(filteredMales) == 0 || len(filteredFemales) == 0 {
			filteredMales, filteredFemales = males, females
		}
	}
	matchingMales := c.filter.preferTargets(filteredMales)
	matchingFemales := c.filter.preferTargets(filteredFemales)

	var candidates []scoredPair
	for _, m := range matchingMales {
		for _, f := range matchingFemales {
			if !c.acceptsPair(m, f) {
				continue
			}
			candidates = append(candidates, scoredPair{Pair: Pair{Male: m, Female: f}, score: c.PairScore(m, f)})
		}
	}
	if len(candidates) == 0 {
		return randomPairs(filteredMales, filteredFemales, count, rng)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	pairs := make([]Pair, 0, count)
	usedMales := make(map[*creature.Individual]struct{})
	usedFemales := make(map[*creature.Individual]struct{})
	for _, cand := range candidates {
		if len(pairs) == count {
			break
		}
		_, mu := usedMales[cand.Male]
		_, fu := usedFemales[cand.Female]
		if mu || fu {
			continue
		}
		usedMales[cand.Male] = struct{}{}
		usedFemales[cand.Female] = struct{}{}
		pairs = append(pairs, cand.Pair)
	}
	for i := 0; len(pairs) < count; i++ {
		pairs = append(pairs, candidates[i%len(candidates)].Pair)
	}
	return pairs
}

func (c *SelectiveClub) acceptsPair(male, female *creature.Individual) bool {
	if ceiling := c.filter.policy.MaxInbreeding; ceiling != nil && genetics.Inbreeding(male, female) > *ceiling {
		return false
	}
	return c.filter.withinRanges(male) && c.filter.withinRanges(female)
}

// score grades an individual by preference tier plus target matches.
func (c *SelectiveClub) score(ind *creature.Individual) int {
	total := 0
	for _, pref := range c.prefs {
		switch c.tier(ind, pref) {
		case 0:
			total += optimalPoints
		case 1:
			total += acceptablePoints
		}
	}
	return total + targetBonus*c.filter.targetMatches(ind)
}

// legacyScore rewards target phenotypes, more so when homozygous.
func (c *SelectiveClub) legacyScore(ind *creature.Individual) int {
	total := 0
	for _, target := range c.filter.policy.TargetPhenotypes {
		ph, ok := c.filter.phenotype(ind, target.TraitID)
		if !ok || ph != target.Phenotype {
			continue
		}
		total += legacyTargetHit
		if g := ind.Genotype(target.TraitID); g != nil && !g.Heterozygous() && len(g.Alleles()) == 2 {
			total += homozygousBonus
		}
	}
	return total
}

func (c *SelectiveClub) SelectReplacement(candidates []*creature.Individual, sex domain.Sex, rng *rand.Rand) *creature.Individual {
	pool := ofSex(candidates, sex)
	if len(pool) == 0 {
		return nil
	}
	score := c.score
	if len(c.prefs) == 0 {
		pool = keep(pool, func(ind *creature.Individual) bool { return !c.filter.carriesUndesirableGenotype(ind) })
		if len(pool) == 0 {
			return nil
		}
		score = c.legacyScore
	}
	best := -1
	var top []*creature.Individual
	for _, ind := range pool {
		s := score(ind)
		switch {
		case s > best:
			best = s
			top = []*creature.Individual{ind}
		case s == best:
			top = append(top, ind)
		}
	}
	return genetics.Choice(rng, top)
}

// EvaluateOffspringVsParents pairs the best offspring against the worst
// parents one for one. An offspring strictly better than its paired parent is
// kept and the parent traded; the rest of the offspring are released.
func (c *SelectiveClub) EvaluateOffspringVsParents(offspring, parents []*creature.Individual, rng *rand.Rand) Evaluation {
	var out Evaluation
	if len(offspring) == 0 {
		return out
	}
	if len(parents) == 0 {
		out.Release = append(out.Release, offspring...)
		return out
	}
	kids := genetics.Shuffled(rng, offspring)
	olds := genetics.Shuffled(rng, parents)
	sort.SliceStable(kids, func(i, j int) bool { return c.score(kids[i]) > c.score(kids[j]) })
	sort.SliceStable(olds, func(i, j int) bool { return c.score(olds[i]) < c.score(olds[j]) })

	n := 0
	for n < len(kids) && n < len(olds) && c.score(kids[n]) > c.score(olds[n]) {
		out.Keep = append(out.Keep, kids[n])
		out.Trade = append(out.Trade, olds[n])
		n++
	}
	out.Release = append(out.Release, kids[n:]...)
	return out
}
