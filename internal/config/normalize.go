package config

import (
	"math"
	"strings"

	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

var traitTypeAliases = map[string]domain.TraitType{
	"CODOMINANCE": domain.TraitCodominant,
}

// normalize scales the sex ratio and genotype frequencies to sum to one and
// rewrites genotype strings in canonical allele order. Values that cannot be
// normalized are left for Validate to report.
func (c *Config) normalize() {
	if c.Mode == "" {
		c.Mode = domain.ModeQuiet
	}
	c.Mode = domain.RunMode(strings.ToLower(string(c.Mode)))

	if total := c.InitialSexRatio.Male + c.InitialSexRatio.Female; total > 0 && c.InitialSexRatio.Male >= 0 && c.InitialSexRatio.Female >= 0 {
		c.InitialSexRatio.Male /= total
		c.InitialSexRatio.Female /= total
	}

	types := make(map[int]domain.TraitType, len(c.Traits))
	for i := range c.Traits {
		t := &c.Traits[i]
		upper := strings.ToUpper(strings.TrimSpace(string(t.Type)))
		if alias, ok := traitTypeAliases[upper]; ok {
			t.Type = alias
		} else {
			t.Type = domain.TraitType(upper)
		}
		types[t.ID] = t.Type

		// Sex-linked frequencies sum to one per sex.
		totals := make(map[domain.Sex]float64, 2)
		for j := range t.Genotypes {
			g := &t.Genotypes[j]
			g.Sex = domain.Sex(strings.ToLower(string(g.Sex)))
			totals[g.Sex] += g.InitialFrequency
		}
		for j := range t.Genotypes {
			g := &t.Genotypes[j]
			if canonical, err := genetics.Canonical(g.Genotype, t.Type, g.Sex); err == nil {
				g.Genotype = canonical
			}
			if total := totals[g.Sex]; total > 0 && g.InitialFrequency >= 0 {
				g.InitialFrequency /= total
			}
		}
	}

	canonical := func(traitID int, s string) string {
		tt, ok := types[traitID]
		if !ok || tt == domain.TraitSexLinked {
			return s
		}
		if out, err := genetics.Canonical(s, tt, ""); err == nil {
			return out
		}
		return s
	}
	for i := range c.UndesirableGenotypes {
		u := &c.UndesirableGenotypes[i]
		u.Genotype = canonical(u.TraitID, u.Genotype)
	}
	for i := range c.GenotypePreferences {
		p := &c.GenotypePreferences[i]
		for _, tier := range [][]string{p.Optimal, p.Acceptable, p.Undesirable} {
			for j := range tier {
				tier[j] = canonical(p.TraitID, tier[j])
			}
		}
	}
}

// DaysToCycles converts days to whole cycles, rounding half away from zero.
func DaysToCycles(days, cycleDays float64) int {
	return int(math.Round(days / cycleDays))
}

// MonthsToCycles converts months to whole cycles.
func MonthsToCycles(months, cycleDays float64) int {
	return DaysToCycles(months*DaysPerMonth, cycleDays)
}

// YearsToCycles converts years to whole cycles.
func YearsToCycles(years, cycleDays float64) int {
	return DaysToCycles(years*DaysPerYear, cycleDays)
}
