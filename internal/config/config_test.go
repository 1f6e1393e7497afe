package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesim/pkg/domain"
)

func validationErrors(t *testing.T, err error) []*ValidationError {
	t.Helper()
	require.Error(t, err)
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok, "expected joined errors, got %T", err)
	var out []*ValidationError
	for _, e := range joined.Unwrap() {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve), "unexpected error %v", e)
		out = append(out, ve)
	}
	return out
}

func hasField(errs []*ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestDefaultsConvertToCycles(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	sim := cfg.ToSimulation()
	assert.Equal(t, uint64(42), sim.Seed)
	assert.Equal(t, 30, sim.Cycles)
	assert.Equal(t, domain.ModeQuiet, sim.Mode)
	assert.Equal(t, domain.Archetype{
		GestationCycles:    3,
		NursingCycles:      1,
		MaturityCycles:     8,
		MaxFertilityMale:   68,
		MaxFertilityFemale: 65,
		LifespanMin:        49,
		LifespanMax:        76,
		LitterMin:          3,
		LitterMax:          6,
		NearingEndCycles:   12,
	}, sim.Archetype)
	assert.InDelta(t, 0.5, sim.FemaleRatio, 1e-12)

	require.Len(t, sim.Breeders, 8)
	want := []domain.BreederVariant{
		domain.VariantUnselective, domain.VariantUnselective,
		domain.VariantInbreedingAvoidance, domain.VariantInbreedingAvoidance,
		domain.VariantSelectiveClub, domain.VariantSelectiveClub,
		domain.VariantHighVolume, domain.VariantHighVolume,
	}
	for i, spec := range sim.Breeders {
		assert.Equal(t, want[i], spec.Variant)
		assert.Equal(t, 7, spec.MaxCreatures)
	}
	assert.Equal(t, domain.TransferSettings{
		SelectiveClubMale:            0.15,
		SelectiveClubFemaleTransfers: 3,
		HighVolume:                   0.02,
		Default:                      0.12,
		MaxPerCycle:                  1,
	}, sim.Transfer)
	assert.InDelta(t, 0.8, sim.CullFraction, 1e-12)
	assert.Equal(t, 3, sim.ReplacementBuffer)
	assert.InDelta(t, 0.25, sim.AvoidanceMaxInbreeding, 1e-12)
}

func TestUnitConversions(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"days round down", DaysToCycles(30, 28), 1},
		{"days round half up", DaysToCycles(42, 28), 2},
		{"months", MonthsToCycles(6, 28), 7},
		{"years", YearsToCycles(1, 28), 13},
		{"zero", DaysToCycles(0, 28), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestUserFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
seed: 7
mode: DEBUG
breeders:
  mill: 0
  max_creatures: 12
initial_sex_ratio: {male: 3, female: 1}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, domain.ModeDebug, cfg.Mode)
	assert.Equal(t, 2, cfg.Breeders.Random, "keys absent from the file keep their defaults")
	assert.Equal(t, 0, cfg.Breeders.Mill)
	assert.Equal(t, 12, cfg.Breeders.MaxCreatures)
	assert.InDelta(t, 0.75, cfg.InitialSexRatio.Male, 1e-12)
	assert.InDelta(t, 0.25, cfg.ToSimulation().FemaleRatio, 1e-12)
	assert.Len(t, cfg.ToSimulation().Breeders, 6)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "kennel_vs_mill.yaml"))
	require.NoError(t, err)
	sim := cfg.ToSimulation()
	require.Len(t, sim.Traits, 3)
	assert.Equal(t, domain.TraitSexLinked, sim.Traits[2].Type)
	require.NotNil(t, sim.Policy.MaxInbreeding)
	assert.InDelta(t, 0.25, *sim.Policy.MaxInbreeding, 1e-12)
	assert.Len(t, sim.Breeders, 15)
	assert.Equal(t, []string{"LL"}, sim.Policy.GenotypePreferences[0].Optimal)

	var male, female float64
	for _, g := range sim.Traits[2].Genotypes {
		if g.Sex == domain.SexMale {
			male += g.InitialFrequency
		} else {
			female += g.InitialFrequency
		}
	}
	assert.InDelta(t, 1, male, 1e-9)
	assert.InDelta(t, 1, female, 1e-9)
}

func TestNormalizeFrequenciesAndGenotypes(t *testing.T) {
	cfg, err := Parse([]byte(`
traits:
  - trait_id: 5
    name: Coat
    trait_type: codominance
    genotypes:
      - {genotype: RR, phenotype: Red, initial_freq: 1}
      - {genotype: WR, phenotype: Roan, initial_freq: 2}
      - {genotype: WW, phenotype: White, initial_freq: 1}
genotype_preferences:
  - {trait_id: 5, optimal: [WR], acceptable: [RR], undesirable: [WW]}
`))
	require.NoError(t, err)
	trait := cfg.Traits[0]
	assert.Equal(t, domain.TraitCodominant, trait.Type)
	assert.Equal(t, "RW", trait.Genotypes[1].Genotype)
	assert.InDelta(t, 0.5, trait.Genotypes[1].InitialFrequency, 1e-12)
	assert.InDelta(t, 0.25, trait.Genotypes[0].InitialFrequency, 1e-12)
	assert.Equal(t, []string{"RW"}, cfg.GenotypePreferences[0].Optimal)
}

func TestValidateReportsEveryError(t *testing.T) {
	_, err := Parse([]byte(`
years: 0
mode: loud
initial_population_size: 0
creature_archetype:
  litter_size: {min: 5, max: 2}
breeders: {random: 0, inbreeding_avoidance: 0, kennel_club: 0, mill: 0, mill_transfer_probability: 2}
traits:
  - {trait_id: 1, name: A, trait_type: SIMPLE_MENDELIAN, genotypes: [{genotype: AA, phenotype: x, initial_freq: 1}]}
  - {trait_id: 1, name: B, trait_type: SIMPLE_MENDELIAN, genotypes: [{genotype: BB, phenotype: y, initial_freq: 1}]}
  - {trait_id: 150, name: C, trait_type: WEIRD, genotypes: [{genotype: CC, phenotype: z, initial_freq: 1}]}
target_phenotypes:
  - {trait_id: 9, phenotype: Red}
`))
	errs := validationErrors(t, err)
	for _, field := range []string{
		"years",
		"mode",
		"initial_population_size",
		"creature_archetype.litter_size",
		"breeders",
		"breeders.mill_transfer_probability",
		"traits[1].trait_id",
		"traits[2].trait_id",
		"traits[2].trait_type",
		"target_phenotypes[0].trait_id",
	} {
		assert.True(t, hasField(errs, field), "expected error for %s in %v", field, err)
	}
}

func TestValidateGenotypeShapes(t *testing.T) {
	cases := []struct {
		name  string
		trait string
		field string
	}{
		{
			name: "frequencies sum to zero",
			trait: `{trait_id: 0, name: A, trait_type: SIMPLE_MENDELIAN, genotypes: [
				{genotype: AA, phenotype: x, initial_freq: 0}, {genotype: aa, phenotype: y, initial_freq: 0}]}`,
			field: "traits[0].genotypes",
		},
		{
			name: "duplicate genotype after canonical ordering",
			trait: `{trait_id: 0, name: A, trait_type: SIMPLE_MENDELIAN, genotypes: [
				{genotype: Aa, phenotype: x, initial_freq: 1}, {genotype: aA, phenotype: y, initial_freq: 1}]}`,
			field: "traits[0].genotypes[1]",
		},
		{
			name: "odd length genotype",
			trait: `{trait_id: 0, name: A, trait_type: SIMPLE_MENDELIAN, genotypes: [
				{genotype: AAA, phenotype: x, initial_freq: 1}]}`,
			field: "traits[0].genotypes[0].genotype",
		},
		{
			name: "polygenic segment mismatch",
			trait: `{trait_id: 0, name: H, trait_type: POLYGENIC, genotypes: [
				{genotype: Aa_Bb, phenotype: mid, initial_freq: 1}, {genotype: AA, phenotype: tall, initial_freq: 1}]}`,
			field: "traits[0].genotypes[1].genotype",
		},
		{
			name: "sex linked without sex",
			trait: `{trait_id: 0, name: E, trait_type: SEX_LINKED, genotypes: [
				{genotype: XRXr, phenotype: Red, initial_freq: 1}]}`,
			field: "traits[0].genotypes[0].sex",
		},
		{
			name: "sex linked male with two alleles",
			trait: `{trait_id: 0, name: E, trait_type: SEX_LINKED, genotypes: [
				{genotype: XRXr, phenotype: Red, initial_freq: 1, sex: female},
				{genotype: XRXR, phenotype: Red, initial_freq: 1, sex: male}]}`,
			field: "traits[0].genotypes[1].genotype",
		},
		{
			name: "sex linked missing a sex",
			trait: `{trait_id: 0, name: E, trait_type: SEX_LINKED, genotypes: [
				{genotype: XRXr, phenotype: Red, initial_freq: 1, sex: female}]}`,
			field: "traits[0].genotypes",
		},
		{
			name: "sex on autosomal trait",
			trait: `{trait_id: 0, name: A, trait_type: SIMPLE_MENDELIAN, genotypes: [
				{genotype: AA, phenotype: x, initial_freq: 1, sex: male}]}`,
			field: "traits[0].genotypes[0].sex",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte("traits:\n  - " + tc.trait + "\n"))
			assert.True(t, hasField(validationErrors(t, err), tc.field), "expected error for %s, got %v", tc.field, err)
		})
	}
}

func TestPreferenceTierConflict(t *testing.T) {
	_, err := Parse([]byte(`
traits:
  - {trait_id: 0, name: A, trait_type: SIMPLE_MENDELIAN, genotypes: [{genotype: AA, phenotype: x, initial_freq: 1}]}
genotype_preferences:
  - {trait_id: 0, optimal: [AA], undesirable: [AA]}
`))
	assert.True(t, hasField(validationErrors(t, err), "genotype_preferences[0]"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Parse([]byte("seed: [not, a, number]"))
	require.ErrorContains(t, err, "parsing config file")
}

func TestEffectiveConfigYAMLReloads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "kennel_vs_mill.yaml"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	again, err := Load(path)
	require.NoError(t, err)
	want, err := cfg.YAML()
	require.NoError(t, err)
	got, err := again.YAML()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.Equal(t, cfg.ToSimulation().Archetype, again.ToSimulation().Archetype)
}
