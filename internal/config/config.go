// Package config loads simulation configuration from YAML, validates it and
// converts every duration into cycle units.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"genesim/pkg/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Calendar constants used to convert configured durations into cycles.
const (
	DaysPerMonth = 30.44
	DaysPerYear  = 365.25
)

// Config is the user-facing run configuration.
type Config struct {
	Seed                  uint64                      `yaml:"seed"`
	Years                 float64                     `yaml:"years"`
	Mode                  domain.RunMode              `yaml:"mode"`
	InitialPopulationSize int                         `yaml:"initial_population_size"`
	InitialSexRatio       SexRatio                    `yaml:"initial_sex_ratio"`
	CreatureArchetype     ArchetypeConfig             `yaml:"creature_archetype"`
	Breeders              BreedersConfig              `yaml:"breeders"`
	TargetPhenotypes      []domain.PhenotypeTarget    `yaml:"target_phenotypes"`
	UndesirablePhenotypes []domain.PhenotypeTarget    `yaml:"undesirable_phenotypes"`
	UndesirableGenotypes  []domain.GenotypeTarget     `yaml:"undesirable_genotypes"`
	GenotypePreferences   []domain.GenotypePreference `yaml:"genotype_preferences"`
	Traits                []domain.Trait              `yaml:"traits"`
}

// SexRatio is the founder sex ratio. It is normalized to sum to one.
type SexRatio struct {
	Male   float64 `yaml:"male"`
	Female float64 `yaml:"female"`
}

// YearRange bounds a duration in years.
type YearRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// CountRange bounds a count.
type CountRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// FertilityAges is the age in years at which each sex stops breeding.
type FertilityAges struct {
	Male   float64 `yaml:"male"`
	Female float64 `yaml:"female"`
}

// ArchetypeConfig is the species life history in calendar units.
type ArchetypeConfig struct {
	Lifespan                    YearRange     `yaml:"lifespan"`
	SexualMaturityMonths        float64       `yaml:"sexual_maturity_months"`
	MaxFertilityAgeYears        FertilityAges `yaml:"max_fertility_age_years"`
	GestationPeriodDays         float64       `yaml:"gestation_period_days"`
	NursingPeriodDays           float64       `yaml:"nursing_period_days"`
	MenstrualCycleDays          float64       `yaml:"menstrual_cycle_days"`
	NearingEndCycles            int           `yaml:"nearing_end_cycles"`
	RemoveIneligibleImmediately bool          `yaml:"remove_ineligible_immediately"`
	LitterSize                  CountRange    `yaml:"litter_size"`
}

// KennelClubConfig holds the selective club's extra pairing constraints.
type KennelClubConfig struct {
	MaxInbreedingCoefficient *float64                `yaml:"max_inbreeding_coefficient"`
	RequiredPhenotypeRanges  []domain.PhenotypeRange `yaml:"required_phenotype_ranges"`
}

// BreedersConfig sets the breeder composition and the shared breeding policy.
type BreedersConfig struct {
	Random                     int               `yaml:"random"`
	InbreedingAvoidance        int               `yaml:"inbreeding_avoidance"`
	KennelClub                 int               `yaml:"kennel_club"`
	Mill                       int               `yaml:"mill"`
	MaxCreatures               int               `yaml:"max_creatures"`
	KennelClubConfig           *KennelClubConfig `yaml:"kennel_club_config"`
	AvoidUndesirablePhenotypes bool              `yaml:"avoid_undesirable_phenotypes"`
	AvoidUndesirableGenotypes  bool              `yaml:"avoid_undesirable_genotypes"`
	KennelFemaleTransferCount  float64           `yaml:"kennel_female_transfer_count"`
	KennelMaleTransferProb     float64           `yaml:"kennel_male_transfer_probability"`
	MillTransferProbability    float64           `yaml:"mill_transfer_probability"`
	BaselineTransferProb       float64           `yaml:"baseline_transfer_probability"`
	MaxTransfersPerCycle       int               `yaml:"max_transfers_per_cycle"`
	NonBreederHomingFraction   float64           `yaml:"non_breeder_homing_fraction"`
	ReplacementBufferCycles    int               `yaml:"replacement_buffer_cycles"`
	AvoidanceMaxInbreeding     float64           `yaml:"inbreeding_avoidance_max_coefficient"`
}

// Count returns the number of breeders of a variant.
func (b BreedersConfig) Count(v domain.BreederVariant) int {
	switch v {
	case domain.VariantUnselective:
		return b.Random
	case domain.VariantInbreedingAvoidance:
		return b.InbreedingAvoidance
	case domain.VariantSelectiveClub:
		return b.KennelClub
	case domain.VariantHighVolume:
		return b.Mill
	}
	return 0
}

// Total returns the number of breeders across all variants.
func (b BreedersConfig) Total() int {
	return b.Random + b.InbreedingAvoidance + b.KennelClub + b.Mill
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return Parse(nil)
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is
// normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over the embedded defaults, then normalizes and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		// Unmarshal into same struct - only overwrites fields present in data
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the effective configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
