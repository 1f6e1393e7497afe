package population

import (
	"genesim/pkg/domain"
)

// GenotypeFrequencies returns the share of each genotype among members that
// carry the trait.
func (p *Population) GenotypeFrequencies(traitID int) map[string]float64 {
	counts := make(map[string]int)
	total := 0
	for _, ind := range p.members {
		g := ind.Genotype(traitID)
		if g == nil {
			continue
		}
		counts[g.String()]++
		total++
	}
	return normalize(counts, total)
}

// AlleleFrequencies returns the share of each allele among all alleles
// carried for the trait. Hemizygous carriers contribute one allele and
// polygenic carriers two per gene pair.
func (p *Population) AlleleFrequencies(traitID int) map[string]float64 {
	counts := make(map[string]int)
	total := 0
	for _, ind := range p.members {
		g := ind.Genotype(traitID)
		if g == nil {
			continue
		}
		for _, allele := range g.Alleles() {
			counts[allele]++
			total++
		}
	}
	return normalize(counts, total)
}

// Heterozygosity returns the share of carriers with at least one
// heterozygous gene pair.
func (p *Population) Heterozygosity(traitID int) float64 {
	het, total := 0, 0
	for _, ind := range p.members {
		g := ind.Genotype(traitID)
		if g == nil {
			continue
		}
		total++
		if g.Heterozygous() {
			het++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(het) / float64(total)
}

// GenotypeDiversity returns the number of distinct genotypes present.
func (p *Population) GenotypeDiversity(traitID int) int {
	seen := make(map[string]struct{})
	for _, ind := range p.members {
		if g := ind.Genotype(traitID); g != nil {
			seen[g.String()] = struct{}{}
		}
	}
	return len(seen)
}

// Snapshot fills the per-trait statistics of a cycle record.
func (p *Population) Snapshot(traits []domain.Trait, stats *domain.CycleStats) {
	stats.PopulationSize = len(p.members)
	stats.GenotypeFrequencies = make(map[int]map[string]float64, len(traits))
	stats.AlleleFrequencies = make(map[int]map[string]float64, len(traits))
	stats.Heterozygosity = make(map[int]float64, len(traits))
	stats.GenotypeDiversity = make(map[int]int, len(traits))
	for _, trait := range traits {
		stats.GenotypeFrequencies[trait.ID] = p.GenotypeFrequencies(trait.ID)
		stats.AlleleFrequencies[trait.ID] = p.AlleleFrequencies(trait.ID)
		stats.Heterozygosity[trait.ID] = p.Heterozygosity(trait.ID)
		stats.GenotypeDiversity[trait.ID] = p.GenotypeDiversity(trait.ID)
	}
}

// SexCounts returns the number of males and females in the working set.
func (p *Population) SexCounts() (males, females int) {
	for _, ind := range p.members {
		if ind.Sex == domain.SexMale {
			males++
		} else {
			females++
		}
	}
	return males, females
}

// TargetShare returns the share of members whose phenotypes match every
// target. It returns zero when no targets are configured.
func (p *Population) TargetShare(traits []domain.Trait, targets []domain.PhenotypeTarget) float64 {
	if len(targets) == 0 || len(p.members) == 0 {
		return 0
	}
	byID := make(map[int]domain.Trait, len(traits))
	for _, t := range traits {
		byID[t.ID] = t
	}
	matches := 0
	for _, ind := range p.members {
		ok := true
		for _, target := range targets {
			trait, found := byID[target.TraitID]
			if !found {
				ok = false
				break
			}
			if ph, has := ind.Phenotype(trait); !has || ph != target.Phenotype {
				ok = false
				break
			}
		}
		if ok {
			matches++
		}
	}
	return float64(matches) / float64(len(p.members))
}

func normalize(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	if total == 0 {
		return out
	}
	for k, v := range counts {
		out[k] = float64(v) / float64(total)
	}
	return out
}
