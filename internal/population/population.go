// Package population holds the working set of living, in-pool individuals
// and the relative-cycle schedule that ages them out.
package population

import (
	"genesim/internal/creature"
	"genesim/pkg/domain"
)

// Population is the working set. Bucket k of the schedule holds every
// individual that ages out k cycles after the current cycle.
type Population struct {
	members  []*creature.Individual
	schedule [][]*creature.Individual
	cycle    int
}

// New returns an empty population positioned at the given cycle.
func New(cycle int) *Population {
	return &Population{cycle: cycle}
}

// Cycle returns the cycle that bucket zero refers to.
func (p *Population) Cycle() int { return p.cycle }

// Len returns the working set size.
func (p *Population) Len() int { return len(p.members) }

// Individuals returns the working set. Callers must not modify the slice.
func (p *Population) Individuals() []*creature.Individual { return p.members }

// Add inserts individuals into the working set and the age-out schedule.
// Individuals whose death cycle has already passed land in bucket zero.
func (p *Population) Add(inds ...*creature.Individual) {
	for _, ind := range inds {
		p.members = append(p.members, ind)
		slot := p.slot(ind)
		for len(p.schedule) <= slot {
			p.schedule = append(p.schedule, nil)
		}
		p.schedule[slot] = append(p.schedule[slot], ind)
	}
}

func (p *Population) slot(ind *creature.Individual) int {
	return max(0, ind.DeathCycle()-p.cycle)
}

// EligibleMales returns breeding-eligible males at the cycle.
func (p *Population) EligibleMales(cycle int) []*creature.Individual {
	return p.eligible(cycle, domain.SexMale)
}

// EligibleFemales returns breeding-eligible females at the cycle.
func (p *Population) EligibleFemales(cycle int) []*creature.Individual {
	return p.eligible(cycle, domain.SexFemale)
}

func (p *Population) eligible(cycle int, sex domain.Sex) []*creature.Individual {
	var out []*creature.Individual
	for _, ind := range p.members {
		if ind.Sex == sex && ind.IsBreedingEligible(cycle) {
			out = append(out, ind)
		}
	}
	return out
}

// OwnedBy returns the members owned by a breeder.
func (p *Population) OwnedBy(breederID int64) []*creature.Individual {
	var out []*creature.Individual
	for _, ind := range p.members {
		if ind.BreederID == breederID {
			out = append(out, ind)
		}
	}
	return out
}

// AgedOut returns the individuals in bucket zero without removing them.
func (p *Population) AgedOut() []*creature.Individual {
	if len(p.schedule) == 0 {
		return nil
	}
	out := make([]*creature.Individual, len(p.schedule[0]))
	copy(out, p.schedule[0])
	return out
}

// Remove drops individuals from the working set and their schedule bucket.
func (p *Population) Remove(inds ...*creature.Individual) {
	if len(inds) == 0 {
		return
	}
	drop := make(map[*creature.Individual]struct{}, len(inds))
	for _, ind := range inds {
		drop[ind] = struct{}{}
		if slot := p.slot(ind); slot < len(p.schedule) {
			p.schedule[slot] = without(p.schedule[slot], drop)
		}
	}
	p.members = without(p.members, drop)
}

// Advance removes bucket zero from the working set, shifts the schedule by
// one slot, and moves to the next cycle. It returns the removed individuals.
func (p *Population) Advance() []*creature.Individual {
	var expired []*creature.Individual
	if len(p.schedule) > 0 {
		expired = p.schedule[0]
		p.schedule[0] = nil
		p.schedule = p.schedule[1:]
	}
	if len(expired) > 0 {
		drop := make(map[*creature.Individual]struct{}, len(expired))
		for _, ind := range expired {
			drop[ind] = struct{}{}
		}
		p.members = without(p.members, drop)
	}
	p.cycle++
	return expired
}

func without(list []*creature.Individual, drop map[*creature.Individual]struct{}) []*creature.Individual {
	out := list[:0]
	for _, ind := range list {
		if _, ok := drop[ind]; !ok {
			out = append(out, ind)
		}
	}
	for i := len(out); i < len(list); i++ {
		list[i] = nil
	}
	return out
}
