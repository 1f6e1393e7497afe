package cycle

import (
	"context"
	"fmt"

	"genesim/internal/breeding"
	"genesim/internal/creature"
	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// Ownership transfer reasons.
const (
	ReasonClaim    = "claim"
	ReasonTransfer = "transfer"
)

func (o *Orchestrator) planReplacements(_ context.Context, st *state) error {
	st.plan = breeding.PlanReplacements(o.breeders, o.pop, st.cycle, o.cfg.Archetype, o.cfg.ReplacementBuffer)
	return nil
}

func (o *Orchestrator) filterEligible(_ context.Context, st *state) error {
	st.males = o.pop.EligibleMales(st.cycle)
	st.females = o.pop.EligibleFemales(st.cycle)
	st.stats.EligibleMales = len(st.males)
	st.stats.EligibleFemales = len(st.females)
	return nil
}

func (o *Orchestrator) unmated(list []*creature.Individual, st *state) []*creature.Individual {
	var out []*creature.Individual
	for _, ind := range list {
		if _, ok := st.mated[ind]; !ok {
			out = append(out, ind)
		}
	}
	return out
}

// distributePairs splits the pair budget across breeders, earliest breeders
// taking the remainder. Each animal mates at most once per cycle; a female
// that conceived is gestating for the rest of it. Pairs repeating an animal
// are dropped and the breeder draws again from the animals still unmated.
func (o *Orchestrator) distributePairs(_ context.Context, st *state) error {
	total := min(len(st.males), len(st.females))
	if total == 0 || len(o.breeders) == 0 {
		return nil
	}
	share, extra := total/len(o.breeders), total%len(o.breeders)
	for i, b := range o.breeders {
		allot := share
		if i < extra {
			allot++
		}
		for allot > 0 {
			males, females := o.unmated(st.males, st), o.unmated(st.females, st)
			if len(males) == 0 || len(females) == 0 {
				return nil
			}
			accepted := o.acceptPairs(st, b, b.SelectPairs(males, females, allot, o.rng), allot)
			allot -= accepted
			// SelectiveClub pads its list by reusing its best pairs; the
			// pool it narrowed to is final for the cycle.
			if accepted == 0 || b.Variant() == domain.VariantSelectiveClub {
				break
			}
		}
	}
	return nil
}

// acceptPairs records up to limit pairs whose animals are both still unmated
// this cycle and returns how many it took.
func (o *Orchestrator) acceptPairs(st *state, b *breeding.Breeder, pairs []breeding.Pair, limit int) int {
	accepted := 0
	for _, p := range pairs {
		if accepted == limit {
			break
		}
		_, maleUsed := st.mated[p.Male]
		_, femaleUsed := st.mated[p.Female]
		if maleUsed || femaleUsed {
			continue
		}
		st.mated[p.Male] = struct{}{}
		st.mated[p.Female] = struct{}{}
		st.pairs = append(st.pairs, mating{Pair: p, breederID: b.ID})
		accepted++
	}
	return accepted
}

// reproduce conceives a litter per pair and persists every offspring as soon
// as it is constructed.
func (o *Orchestrator) reproduce(ctx context.Context, st *state) error {
	arch := o.cfg.Archetype
	for _, p := range st.pairs {
		p.Female.Conceive(st.cycle, arch)
		p.Male.HasProduced = true
		litter := genetics.UniformInt(o.rng, arch.LitterMin, arch.LitterMax)
		for i := 0; i < litter; i++ {
			child, err := creature.CreateOffspring(creature.Mating{
				Sire:       p.Male,
				Dam:        p.Female,
				Cycle:      st.cycle,
				ProducedBy: p.breederID,
			}, o.cfg.Traits, arch, o.rng)
			if err != nil {
				return err
			}
			id, err := o.store.CreateIndividual(ctx, child.Record())
			if err != nil {
				return fmt.Errorf("persist offspring of %d x %d: %w", p.Male.ID, p.Female.ID, err)
			}
			child.ID = id
			o.pop.Add(child)
			st.offspring = append(st.offspring, child)
			st.changes = append(st.changes, domain.Change{Entity: domain.EntityIndividual, Action: domain.ActionCreate, After: child.Record()})
		}
	}
	st.stats.Births = len(st.offspring)
	return nil
}

var sexes = []domain.Sex{domain.SexMale, domain.SexFemale}

func ofSex(list []*creature.Individual, sex domain.Sex) []*creature.Individual {
	var out []*creature.Individual
	for _, ind := range list {
		if ind.Sex == sex {
			out = append(out, ind)
		}
	}
	return out
}

func remove(list []*creature.Individual, ind *creature.Individual) []*creature.Individual {
	for i, x := range list {
		if x == ind {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// retain lets each breeder keep replacements from its own litters, then lets
// breeders with unmet need claim from the released offspring. Unclaimed
// offspring are homed.
func (o *Orchestrator) retain(ctx context.Context, st *state) error {
	var pool []*creature.Individual
	litters := make(map[int64][]*creature.Individual)
	for _, child := range st.offspring {
		if _, ok := o.byID[child.BreederID]; ok {
			litters[child.BreederID] = append(litters[child.BreederID], child)
			continue
		}
		pool = append(pool, child)
	}

	for _, b := range o.breeders {
		litter := litters[b.ID]
		need := st.plan.Need(b.ID)
		for _, sex := range sexes {
			for need.Count(sex) > 0 {
				candidates := ofSex(litter, sex)
				if len(candidates) == 0 {
					break
				}
				pick := b.SelectReplacement(candidates, sex, o.rng)
				if pick == nil {
					break
				}
				litter = remove(litter, pick)
				need.Satisfy(sex)
				if err := o.replaceWeakParent(ctx, st, b, need, pick); err != nil {
					return err
				}
			}
		}
		pool = append(pool, litter...)
	}

	for _, b := range o.breeders {
		need := st.plan.Need(b.ID)
		for _, sex := range sexes {
			for need.Count(sex) > 0 {
				candidates := ofSex(pool, sex)
				if len(candidates) == 0 {
					break
				}
				pick := b.SelectReplacement(candidates, sex, o.rng)
				if pick == nil {
					break
				}
				pool = remove(pool, pick)
				need.Satisfy(sex)
				if pick.BreederID == b.ID {
					continue
				}
				if err := o.reassign(ctx, st, pick, b.ID, ReasonClaim); err != nil {
					return err
				}
			}
		}
	}

	for _, child := range pool {
		if err := o.home(ctx, st, child); err != nil {
			return err
		}
	}
	return nil
}

// replaceWeakParent homes a flagged same-sex parent when a grading breeder
// keeps an optimal offspring that outscores it.
func (o *Orchestrator) replaceWeakParent(ctx context.Context, st *state, b *breeding.Breeder, need *breeding.Need, kept *creature.Individual) error {
	grader := b.Retention().Grader
	if grader == nil || !grader.Optimal(kept) {
		return nil
	}
	targets := need.Targets(kept.Sex)
	if len(targets) == 0 {
		return nil
	}
	eval := grader.EvaluateOffspringVsParents([]*creature.Individual{kept}, targets, o.rng)
	for _, parent := range eval.Trade {
		need.Release(parent)
		if err := o.home(ctx, st, parent); err != nil {
			return err
		}
	}
	return nil
}

// transferOwnership moves at most the policy limit of proven animals to new
// owners, each with a probability set by the current owner's variant.
func (o *Orchestrator) transferOwnership(ctx context.Context, st *state) error {
	if len(o.breeders) == 0 {
		return nil
	}
	limit := o.transfers.Limit()
	for _, ind := range genetics.Shuffled(o.rng, o.pop.Individuals()) {
		if st.stats.Transfers >= limit {
			break
		}
		if !breeding.Transferable(ind, st.cycle) {
			continue
		}
		owner, ok := o.byID[ind.BreederID]
		if !ok {
			continue
		}
		if o.rng.Float64() >= o.transfers.Probability(owner.Variant(), ind.Sex) {
			continue
		}
		destinations := o.transfers.Destinations(ind, o.breeders)
		if len(destinations) == 0 {
			continue
		}
		to := genetics.Choice(o.rng, destinations)
		if err := o.reassign(ctx, st, ind, to.ID, ReasonTransfer); err != nil {
			return err
		}
		ind.TransferCount++
		st.stats.Transfers++
	}
	return nil
}

// cullNonBreeders homes the configured fraction of this cycle's eligible
// animals that did not mate, per sex.
func (o *Orchestrator) cullNonBreeders(ctx context.Context, st *state) error {
	for _, list := range [][]*creature.Individual{st.males, st.females} {
		var idle []*creature.Individual
		for _, ind := range o.unmated(list, st) {
			if !ind.Homed {
				idle = append(idle, ind)
			}
		}
		n := int(float64(len(idle)) * o.cfg.CullFraction)
		for _, ind := range genetics.Shuffled(o.rng, idle)[:n] {
			if err := o.home(ctx, st, ind); err != nil {
				return err
			}
		}
	}
	return nil
}

// age records deaths, snapshots the population, persists the cycle record and
// advances the age-out schedule.
func (o *Orchestrator) age(ctx context.Context, st *state) error {
	aged := o.pop.AgedOut()
	st.stats.Deaths = len(aged)
	o.pop.Snapshot(o.cfg.Traits, &st.stats)
	if err := o.store.RecordCycleStats(ctx, o.simulationID, st.stats); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	for _, ind := range aged {
		ind.Alive = false
		if err := o.store.MarkDeceased(ctx, ind.ID, st.cycle); err != nil {
			return fmt.Errorf("mark %d deceased: %w", ind.ID, err)
		}
	}
	o.pop.Advance()
	return nil
}
