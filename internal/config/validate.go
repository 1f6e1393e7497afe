package config

import (
	"errors"
	"fmt"
	"strings"

	"genesim/internal/genetics"
	"genesim/pkg/domain"
)

// Trait ids are small integers so they can key per-trait columns.
const (
	MinTraitID = 0
	MaxTraitID = 99
)

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

type validator struct {
	errs []error
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (v *validator) check(ok bool, field, format string, args ...any) {
	if !ok {
		v.add(field, format, args...)
	}
}

// Validate reports every invalid field, joined with errors.Join.
func (c *Config) Validate() error {
	v := &validator{}

	v.check(c.Years > 0, "years", "must be positive, got %v", c.Years)
	v.check(c.InitialPopulationSize >= 1, "initial_population_size", "must be at least 1, got %d", c.InitialPopulationSize)
	switch c.Mode {
	case domain.ModeQuiet, domain.ModeMonitor, domain.ModeDebug:
	default:
		v.add("mode", "must be quiet, monitor or debug, got %q", c.Mode)
	}

	r := c.InitialSexRatio
	v.check(r.Male >= 0 && r.Female >= 0, "initial_sex_ratio", "values must be non-negative")
	v.check(r.Male+r.Female > 0, "initial_sex_ratio", "values must not both be zero")

	c.validateArchetype(v)
	c.validateBreeders(v)
	known := c.validateTraits(v)
	c.validateReferences(v, known)

	return errors.Join(v.errs...)
}

func (c *Config) validateArchetype(v *validator) {
	a := c.CreatureArchetype
	const p = "creature_archetype."
	v.check(a.MenstrualCycleDays > 0, p+"menstrual_cycle_days", "must be positive")
	v.check(a.GestationPeriodDays > 0, p+"gestation_period_days", "must be positive")
	v.check(a.NursingPeriodDays >= 0, p+"nursing_period_days", "must be non-negative")
	v.check(a.SexualMaturityMonths > 0, p+"sexual_maturity_months", "must be positive")
	v.check(a.MaxFertilityAgeYears.Male > 0, p+"max_fertility_age_years.male", "must be positive")
	v.check(a.MaxFertilityAgeYears.Female > 0, p+"max_fertility_age_years.female", "must be positive")
	v.check(a.NearingEndCycles >= 0, p+"nearing_end_cycles", "must be non-negative")
	v.check(a.Lifespan.Min > 0 && a.Lifespan.Max > 0, p+"lifespan", "min and max must be positive")
	v.check(a.Lifespan.Min <= a.Lifespan.Max, p+"lifespan", "min %v exceeds max %v", a.Lifespan.Min, a.Lifespan.Max)
	v.check(a.LitterSize.Min > 0 && a.LitterSize.Max > 0, p+"litter_size", "min and max must be positive")
	v.check(a.LitterSize.Min <= a.LitterSize.Max, p+"litter_size", "min %d exceeds max %d", a.LitterSize.Min, a.LitterSize.Max)
	if a.MenstrualCycleDays > 0 && a.Lifespan.Min > 0 {
		v.check(YearsToCycles(a.Lifespan.Min, a.MenstrualCycleDays) >= 1, p+"lifespan", "min is shorter than one cycle")
	}
}

func (c *Config) validateBreeders(v *validator) {
	b := c.Breeders
	const p = "breeders."
	for _, variant := range domain.Variants {
		v.check(b.Count(variant) >= 0, p+string(variant), "must be non-negative")
	}
	v.check(b.Total() > 0, "breeders", "at least one breeder is required")
	v.check(b.MaxCreatures >= 0, p+"max_creatures", "must be non-negative")
	v.check(b.KennelFemaleTransferCount >= 0, p+"kennel_female_transfer_count", "must be non-negative")
	for _, f := range []struct {
		field string
		value float64
	}{
		{"kennel_male_transfer_probability", b.KennelMaleTransferProb},
		{"mill_transfer_probability", b.MillTransferProbability},
		{"baseline_transfer_probability", b.BaselineTransferProb},
		{"non_breeder_homing_fraction", b.NonBreederHomingFraction},
	} {
		v.check(f.value >= 0 && f.value <= 1, p+f.field, "must be within [0, 1], got %v", f.value)
	}
	v.check(b.MaxTransfersPerCycle >= 0, p+"max_transfers_per_cycle", "must be non-negative")
	v.check(b.ReplacementBufferCycles >= 0, p+"replacement_buffer_cycles", "must be non-negative")
	v.check(b.AvoidanceMaxInbreeding >= 0 && b.AvoidanceMaxInbreeding <= 1, p+"inbreeding_avoidance_max_coefficient", "must be within [0, 1]")
	if kc := b.KennelClubConfig; kc != nil {
		if m := kc.MaxInbreedingCoefficient; m != nil {
			v.check(*m >= 0 && *m <= 1, p+"kennel_club_config.max_inbreeding_coefficient", "must be within [0, 1]")
		}
		for i, rg := range kc.RequiredPhenotypeRanges {
			v.check(rg.Min <= rg.Max, fmt.Sprintf("%skennel_club_config.required_phenotype_ranges[%d]", p, i), "min exceeds max")
		}
	}
}

// validateTraits checks the trait catalog and returns the known trait ids.
func (c *Config) validateTraits(v *validator) map[int]domain.TraitType {
	known := make(map[int]domain.TraitType, len(c.Traits))
	if len(c.Traits) == 0 {
		v.add("traits", "at least one trait is required")
	}
	for i, t := range c.Traits {
		field := fmt.Sprintf("traits[%d]", i)
		if t.ID < MinTraitID || t.ID > MaxTraitID {
			v.add(field+".trait_id", "must be between %d and %d, got %d", MinTraitID, MaxTraitID, t.ID)
		}
		if _, dup := known[t.ID]; dup {
			v.add(field+".trait_id", "duplicate trait id %d", t.ID)
		}
		known[t.ID] = t.Type
		if strings.TrimSpace(t.Name) == "" {
			v.add(field+".name", "is required")
		}
		if !t.Type.Valid() {
			v.add(field+".trait_type", "unknown trait type %q", t.Type)
			continue
		}
		if len(t.Genotypes) == 0 {
			v.add(field+".genotypes", "at least one genotype is required")
			continue
		}
		validateGenotypes(v, field, t)
	}
	return known
}

func validateGenotypes(v *validator, field string, t domain.Trait) {
	seen := make(map[string]struct{}, len(t.Genotypes))
	total := 0.0
	positive := map[domain.Sex]bool{}
	segments := -1
	alleleLen := -1
	for j, g := range t.Genotypes {
		gf := fmt.Sprintf("%s.genotypes[%d]", field, j)
		key := string(g.Sex) + "/" + g.Genotype
		if _, dup := seen[key]; dup {
			v.add(gf, "duplicate genotype %q", g.Genotype)
		}
		seen[key] = struct{}{}
		if g.InitialFrequency < 0 {
			v.add(gf+".initial_freq", "must be non-negative, got %v", g.InitialFrequency)
		}
		total += g.InitialFrequency
		if strings.TrimSpace(g.Phenotype) == "" {
			v.add(gf+".phenotype", "is required")
		}

		if t.Type == domain.TraitSexLinked {
			if g.Sex != domain.SexMale && g.Sex != domain.SexFemale {
				v.add(gf+".sex", "sex-linked genotypes need sex male or female, got %q", g.Sex)
				continue
			}
			if g.InitialFrequency > 0 {
				positive[g.Sex] = true
			}
		} else if g.Sex != "" {
			v.add(gf+".sex", "only sex-linked genotypes may set sex")
		}

		parsed, err := genetics.Parse(g.Genotype, t.Type, g.Sex)
		if err != nil {
			v.add(gf+".genotype", "%v", err)
			continue
		}
		switch gt := parsed.(type) {
		case genetics.Polygenic:
			if segments >= 0 && len(gt) != segments {
				v.add(gf+".genotype", "has %d segments, expected %d", len(gt), segments)
			}
			segments = len(gt)
		case genetics.Hemizygous:
			if alleleLen >= 0 && len(gt.Allele) != alleleLen {
				v.add(gf+".genotype", "male genotype must carry one allele of length %d", alleleLen)
			}
			alleleLen = len(gt.Allele)
		case genetics.Diploid:
			if t.Type == domain.TraitSexLinked {
				if alleleLen >= 0 && len(gt.A) != alleleLen {
					v.add(gf+".genotype", "female genotype must carry two alleles of length %d", alleleLen)
				}
				alleleLen = len(gt.A)
			}
		}
	}
	if total <= 0 {
		v.add(field+".genotypes", "initial frequencies must sum to a positive value")
	}
	if t.Type == domain.TraitSexLinked && (!positive[domain.SexMale] || !positive[domain.SexFemale]) {
		v.add(field+".genotypes", "sex-linked traits need a positive-frequency genotype for each sex")
	}
}

func (c *Config) validateReferences(v *validator, known map[int]domain.TraitType) {
	ref := func(field string, traitID int) {
		if _, ok := known[traitID]; !ok {
			v.add(field, "references unknown trait %d", traitID)
		}
	}
	for i, tp := range c.TargetPhenotypes {
		ref(fmt.Sprintf("target_phenotypes[%d].trait_id", i), tp.TraitID)
	}
	for i, up := range c.UndesirablePhenotypes {
		ref(fmt.Sprintf("undesirable_phenotypes[%d].trait_id", i), up.TraitID)
	}
	for i, ug := range c.UndesirableGenotypes {
		ref(fmt.Sprintf("undesirable_genotypes[%d].trait_id", i), ug.TraitID)
	}
	for i, gp := range c.GenotypePreferences {
		field := fmt.Sprintf("genotype_preferences[%d]", i)
		ref(field+".trait_id", gp.TraitID)
		tiers := map[string]string{}
		for _, tier := range []struct {
			name string
			list []string
		}{{"optimal", gp.Optimal}, {"acceptable", gp.Acceptable}, {"undesirable", gp.Undesirable}} {
			for _, g := range tier.list {
				if prev, ok := tiers[g]; ok && prev != tier.name {
					v.add(field, "genotype %q listed as both %s and %s", g, prev, tier.name)
				}
				tiers[g] = tier.name
			}
		}
	}
	if kc := c.Breeders.KennelClubConfig; kc != nil {
		for i, rg := range kc.RequiredPhenotypeRanges {
			ref(fmt.Sprintf("breeders.kennel_club_config.required_phenotype_ranges[%d].trait_id", i), rg.TraitID)
		}
	}
}
