package breeding

import (
	"genesim/internal/creature"
	"genesim/pkg/domain"
)

// DefaultReplacementBuffer is added to the maturity duration to give
// replacements time to mature before the stock they replace dies.
const DefaultReplacementBuffer = 3

// Stock lists the living individuals a breeder owns.
type Stock interface {
	OwnedBy(breederID int64) []*creature.Individual
}

// Need is a breeder's outstanding replacement demand for one cycle.
type Need struct {
	Male    int
	Female  int
	targets map[domain.Sex][]*creature.Individual
}

// Count returns the outstanding need for a sex.
func (n *Need) Count(sex domain.Sex) int {
	if sex == domain.SexMale {
		return n.Male
	}
	return n.Female
}

// Satisfy records one replacement of the sex as acquired.
func (n *Need) Satisfy(sex domain.Sex) {
	if sex == domain.SexMale {
		n.Male = max(0, n.Male-1)
		return
	}
	n.Female = max(0, n.Female-1)
}

// Targets returns the flagged sub-optimal stock of a sex.
func (n *Need) Targets(sex domain.Sex) []*creature.Individual { return n.targets[sex] }

// Release drops an individual from the flagged targets.
func (n *Need) Release(ind *creature.Individual) {
	list := n.targets[ind.Sex]
	for i, t := range list {
		if t == ind {
			n.targets[ind.Sex] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// ReplacementPlan holds every breeder's need for the current cycle. A new
// plan is computed each cycle; nothing carries over.
type ReplacementPlan struct {
	Cycle int
	needs map[int64]*Need
}

// Need returns the breeder's need, or an empty need for unknown breeders.
func (p *ReplacementPlan) Need(breederID int64) *Need {
	if n, ok := p.needs[breederID]; ok {
		return n
	}
	return &Need{}
}

// Outstanding reports the total unmet need across breeders.
func (p *ReplacementPlan) Outstanding() int {
	total := 0
	for _, n := range p.needs {
		total += n.Male + n.Female
	}
	return total
}

// PlanReplacements counts, per breeder, owned stock that will die within
// maturity+buffer cycles or whose fertility closes within the archetype's
// nearing-end window. Proactive breeders also flag living sub-optimal stock. The total is capped by the room left under the breeder's capacity
// once the flagged stock is gone; a zero capacity is unbounded.
func PlanReplacements(breeders []*Breeder, stock Stock, cycle int, arch domain.Archetype, buffer int) *ReplacementPlan {
	lead := arch.MaturityCycles + buffer
	plan := &ReplacementPlan{Cycle: cycle, needs: make(map[int64]*Need, len(breeders))}
	for _, b := range breeders {
		owned := stock.OwnedBy(b.ID)
		grader := b.Retention().Grader
		need := &Need{targets: map[domain.Sex][]*creature.Individual{}}
		flagged := map[domain.Sex]int{}
		for _, ind := range owned {
			if cycle+lead >= ind.DeathCycle() || ind.IsNearingEndOfReproduction(cycle, arch.NearingEndCycles) {
				flagged[ind.Sex]++
				continue
			}
			if grader != nil && grader.SubOptimal(ind) {
				flagged[ind.Sex]++
				need.targets[ind.Sex] = append(need.targets[ind.Sex], ind)
			}
		}
		need.Male, need.Female = flagged[domain.SexMale], flagged[domain.SexFemale]
		if b.MaxCreatures > 0 {
			capNeed(need, b.MaxCreatures-(len(owned)-need.Male-need.Female))
		}
		plan.needs[b.ID] = need
	}
	return plan
}

// capNeed trims a need to room slots, alternating female then male.
func capNeed(n *Need, room int) {
	if n.Male+n.Female <= room {
		return
	}
	male, female := n.Male, n.Female
	n.Male, n.Female = 0, 0
	for room > 0 && (n.Male < male || n.Female < female) {
		if n.Female < female {
			n.Female++
			room--
		}
		if room > 0 && n.Male < male {
			n.Male++
			room--
		}
	}
}
