// Package domain defines the persistent records, configuration value types,
// and rule evaluation primitives shared by the genesim packages.
package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the type of record stored in the simulation schema.
type EntityType string

// Supported entity type identifiers used in Change records and violations.
const (
	// EntitySimulation identifies a simulation run record.
	EntitySimulation EntityType = "simulation"
	// EntityTrait identifies a trait definition record.
	EntityTrait EntityType = "trait"
	// EntityBreeder identifies a breeder record.
	EntityBreeder EntityType = "breeder"
	// EntityIndividual identifies an individual animal record.
	EntityIndividual EntityType = "individual"
	// EntityTransfer identifies an ownership transfer record.
	EntityTransfer EntityType = "ownership_transfer"
	// EntityCycleStats identifies a per-cycle statistics record.
	EntityCycleStats EntityType = "cycle_stats"
)

// Sex is the biological sex of an individual.
type Sex string

// Supported sexes.
const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Opposite returns the other sex.
func (s Sex) Opposite() Sex {
	if s == SexMale {
		return SexFemale
	}
	return SexMale
}

// TraitType controls genotype shape and inheritance.
type TraitType string

// Trait inheritance models.
const (
	TraitSimpleMendelian     TraitType = "SIMPLE_MENDELIAN"
	TraitIncompleteDominance TraitType = "INCOMPLETE_DOMINANCE"
	TraitCodominant          TraitType = "CODOMINANT"
	TraitSexLinked           TraitType = "SEX_LINKED"
	TraitPolygenic           TraitType = "POLYGENIC"
)

// Valid reports whether the trait type is one of the supported models.
func (t TraitType) Valid() bool {
	switch t {
	case TraitSimpleMendelian, TraitIncompleteDominance, TraitCodominant, TraitSexLinked, TraitPolygenic:
		return true
	}
	return false
}

// GenotypeEntry maps a canonical genotype string to its phenotype and
// founder frequency. Sex is set only for sex-linked entries that apply to one sex.
type GenotypeEntry struct {
	Genotype         string  `yaml:"genotype" json:"genotype"`
	Phenotype        string  `yaml:"phenotype" json:"phenotype"`
	InitialFrequency float64 `yaml:"initial_freq" json:"initial_freq"`
	Sex              Sex     `yaml:"sex,omitempty" json:"sex,omitempty"`
}

// Trait defines one heritable characteristic.
type Trait struct {
	ID        int             `yaml:"trait_id" json:"trait_id"`
	Name      string          `yaml:"name" json:"name"`
	Type      TraitType       `yaml:"trait_type" json:"trait_type"`
	Genotypes []GenotypeEntry `yaml:"genotypes" json:"genotypes"`
}

// Phenotype returns the phenotype expressed by a canonical genotype string.
// Entries scoped to the other sex are skipped. The empty string is returned
// when the genotype is not configured.
func (t Trait) Phenotype(genotype string, sex Sex) string {
	for _, entry := range t.Genotypes {
		if entry.Genotype != genotype {
			continue
		}
		if entry.Sex != "" && sex != "" && entry.Sex != sex {
			continue
		}
		return entry.Phenotype
	}
	return ""
}

// PhenotypeOf returns the phenotype for the genotype stored at the trait's
// slot of a genome. The boolean is false when the slot is missing.
func (t Trait) PhenotypeOf(genome map[int]string, sex Sex) (string, bool) {
	g, ok := genome[t.ID]
	if !ok || g == "" {
		return "", false
	}
	return t.Phenotype(g, sex), true
}

// BreederVariant names a breeding strategy.
type BreederVariant string

// Supported breeder variants.
const (
	VariantUnselective         BreederVariant = "random"
	VariantInbreedingAvoidance BreederVariant = "inbreeding_avoidance"
	VariantSelectiveClub       BreederVariant = "kennel_club"
	VariantHighVolume          BreederVariant = "unrestricted_phenotype"
)

// Variants lists breeder variants in allocation order.
var Variants = []BreederVariant{
	VariantUnselective,
	VariantInbreedingAvoidance,
	VariantSelectiveClub,
	VariantHighVolume,
}

// ParseBreederVariant resolves configuration aliases into a variant.
func ParseBreederVariant(s string) (BreederVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random", "unselective":
		return VariantUnselective, nil
	case "inbreeding_avoidance", "avoidance":
		return VariantInbreedingAvoidance, nil
	case "kennel_club", "kennel", "selective_club", "club":
		return VariantSelectiveClub, nil
	case "unrestricted_phenotype", "mill", "high_volume":
		return VariantHighVolume, nil
	}
	return "", fmt.Errorf("unknown breeder variant %q", s)
}

// SendsTo reports whether an owner of this variant may transfer an animal to
// a breeder of the destination variant.
func (v BreederVariant) SendsTo(dest BreederVariant) bool {
	switch v {
	case VariantSelectiveClub:
		return dest != VariantHighVolume
	case VariantHighVolume:
		return dest != VariantSelectiveClub
	}
	return true
}

// AcceptsOrigin reports whether a breeder of this variant accepts an animal
// produced by a breeder of the origin variant.
func (v BreederVariant) AcceptsOrigin(origin BreederVariant) bool {
	if v == VariantSelectiveClub {
		return origin != VariantHighVolume
	}
	return true
}

// PhenotypeTarget names a desired phenotype for a trait.
type PhenotypeTarget struct {
	TraitID   int    `yaml:"trait_id" json:"trait_id"`
	Phenotype string `yaml:"phenotype" json:"phenotype"`
}

// GenotypeTarget names a genotype to avoid for a trait.
type GenotypeTarget struct {
	TraitID  int    `yaml:"trait_id" json:"trait_id"`
	Genotype string `yaml:"genotype" json:"genotype"`
}

// GenotypePreference ranks genotypes for one trait.
type GenotypePreference struct {
	TraitID     int      `yaml:"trait_id" json:"trait_id"`
	Optimal     []string `yaml:"optimal" json:"optimal"`
	Acceptable  []string `yaml:"acceptable" json:"acceptable"`
	Undesirable []string `yaml:"undesirable" json:"undesirable"`
}

// Tier returns the preference tier of a genotype: 0 optimal, 1 acceptable,
// 2 undesirable, 3 not configured.
func (p GenotypePreference) Tier(genotype string) int {
	switch {
	case containsString(p.Optimal, genotype):
		return 0
	case containsString(p.Acceptable, genotype):
		return 1
	case containsString(p.Undesirable, genotype):
		return 2
	}
	return 3
}

// PhenotypeRange bounds a numeric phenotype value. Non-numeric phenotypes
// are not checked.
type PhenotypeRange struct {
	TraitID int     `yaml:"trait_id" json:"trait_id"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
}

// BreederPolicy holds the selection preferences shared by the strategies.
type BreederPolicy struct {
	TargetPhenotypes      []PhenotypeTarget    `yaml:"target_phenotypes" json:"target_phenotypes"`
	UndesirablePhenotypes []PhenotypeTarget    `yaml:"undesirable_phenotypes" json:"undesirable_phenotypes"`
	UndesirableGenotypes  []GenotypeTarget     `yaml:"undesirable_genotypes" json:"undesirable_genotypes"`
	GenotypePreferences   []GenotypePreference `yaml:"genotype_preferences" json:"genotype_preferences"`
	PhenotypeRanges       []PhenotypeRange     `yaml:"phenotype_ranges" json:"phenotype_ranges"`
	AvoidUndesirablePheno bool                 `yaml:"avoid_undesirable_phenotypes" json:"avoid_undesirable_phenotypes"`
	AvoidUndesirableGeno  bool                 `yaml:"avoid_undesirable_genotypes" json:"avoid_undesirable_genotypes"`
	MaxInbreeding         *float64             `yaml:"max_inbreeding_coefficient" json:"max_inbreeding_coefficient"`
}

// BreederSpec describes one breeder participating in a run.
type BreederSpec struct {
	Variant      BreederVariant `yaml:"variant" json:"variant"`
	MaxCreatures int            `yaml:"max_creatures" json:"max_creatures"`
}

// BreederRecord is a persisted breeder.
type BreederRecord struct {
	ID           int64          `json:"breeder_id"`
	SimulationID int64          `json:"simulation_id"`
	Variant      BreederVariant `json:"variant"`
	MaxCreatures int            `json:"max_creatures"`
}

// Archetype is the species life-history profile expressed in cycles.
type Archetype struct {
	GestationCycles    int `json:"gestation_cycles"`
	NursingCycles      int `json:"nursing_cycles"`
	MaturityCycles     int `json:"maturity_cycles"`
	MaxFertilityMale   int `json:"max_fertility_male_cycles"`
	MaxFertilityFemale int `json:"max_fertility_female_cycles"`
	LifespanMin        int `json:"lifespan_min_cycles"`
	LifespanMax        int `json:"lifespan_max_cycles"`
	LitterMin          int `json:"litter_min"`
	LitterMax          int `json:"litter_max"`
	NearingEndCycles   int `json:"nearing_end_cycles"`
}

// AverageLifespan returns the midpoint lifespan in cycles.
func (a Archetype) AverageLifespan() float64 {
	return float64(a.LifespanMin+a.LifespanMax) / 2
}

// FertilityCycles returns the fertility window for a sex.
func (a Archetype) FertilityCycles(sex Sex) int {
	if sex == SexMale {
		return a.MaxFertilityMale
	}
	return a.MaxFertilityFemale
}

// TransferSettings holds the per-variant transfer probabilities. Selective
// club females transfer at SelectiveClubFemaleTransfers per average lifetime.
type TransferSettings struct {
	SelectiveClubMale            float64 `json:"selective_club_male"`
	SelectiveClubFemaleTransfers float64 `json:"selective_club_female_transfers"`
	HighVolume                   float64 `json:"high_volume"`
	Default                      float64 `json:"default"`
	MaxPerCycle                  int     `json:"max_per_cycle"`
}

// RunMode controls run output verbosity.
type RunMode string

// Run modes.
const (
	ModeQuiet   RunMode = "quiet"
	ModeMonitor RunMode = "monitor"
	ModeDebug   RunMode = "debug"
)

// SimulationStatus tracks the lifecycle of a run record.
type SimulationStatus string

// Simulation lifecycle states.
const (
	StatusPending   SimulationStatus = "pending"
	StatusRunning   SimulationStatus = "running"
	StatusCompleted SimulationStatus = "completed"
	StatusFailed    SimulationStatus = "failed"
)

// SimulationRecord is the persisted header of one run.
type SimulationRecord struct {
	ID                int64            `json:"simulation_id"`
	RunKey            string           `json:"run_key"`
	Seed              uint64           `json:"seed"`
	Status            SimulationStatus `json:"status"`
	Cycles            int              `json:"cycles"`
	CyclesCompleted   int              `json:"cycles_completed"`
	InitialPopulation int              `json:"initial_population"`
	FinalPopulation   int              `json:"final_population"`
	ConfigYAML        string           `json:"-"`
}

// IndividualRecord is the durable row shape of an individual.
type IndividualRecord struct {
	ID              int64          `json:"individual_id"`
	SimulationID    int64          `json:"simulation_id"`
	BirthCycle      int            `json:"birth_cycle"`
	Sex             Sex            `json:"sex"`
	Parent1ID       int64          `json:"parent1_id,omitempty"`
	Parent2ID       int64          `json:"parent2_id,omitempty"`
	BreederID       int64          `json:"breeder_id,omitempty"`
	ProducedByID    int64          `json:"produced_by_breeder_id,omitempty"`
	Generation      int            `json:"generation"`
	Inbreeding      float64        `json:"inbreeding_coefficient"`
	Lifespan        int            `json:"lifespan_cycles"`
	ConceptionCycle *int           `json:"conception_cycle,omitempty"`
	Homed           bool           `json:"is_homed"`
	Genotypes       map[int]string `json:"genotypes"`
}

// OwnershipTransfer records one change of owner.
type OwnershipTransfer struct {
	SimulationID  int64  `json:"simulation_id"`
	IndividualID  int64  `json:"individual_id"`
	FromBreederID int64  `json:"from_breeder_id"`
	ToBreederID   int64  `json:"to_breeder_id"`
	Cycle         int    `json:"transfer_generation"`
	Reason        string `json:"reason"`
}

// CycleStats summarises the working population at the end of a cycle.
type CycleStats struct {
	Cycle               int                        `json:"generation"`
	PopulationSize      int                        `json:"population_size"`
	EligibleMales       int                        `json:"eligible_males"`
	EligibleFemales     int                        `json:"eligible_females"`
	Births              int                        `json:"births"`
	Deaths              int                        `json:"deaths"`
	HomedOut            int                        `json:"homed_out"`
	Transfers           int                        `json:"transfers"`
	GenotypeFrequencies map[int]map[string]float64 `json:"genotype_frequencies"`
	AlleleFrequencies   map[int]map[string]float64 `json:"allele_frequencies"`
	Heterozygosity      map[int]float64            `json:"heterozygosity"`
	GenotypeDiversity   map[int]int                `json:"genotype_diversity"`
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// Change describes a mutation applied to an entity during a cycle.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations surfaced to rules.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine run behavior and logging.
const (
	// SeverityBlock aborts the run.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning and continues.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Count returns the number of violations with the given severity.
func (r Result) Count(severity Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == severity {
			n++
		}
	}
	return n
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "cycle blocked by rules"
}

// SimulationConfig is the fully resolved run configuration with every
// duration expressed in cycles.
type SimulationConfig struct {
	Seed                   uint64
	Cycles                 int
	InitialPopulation      int
	FemaleRatio            float64
	Mode                   RunMode
	Archetype              Archetype
	Traits                 []Trait
	Breeders               []BreederSpec
	Policy                 BreederPolicy
	AvoidanceMaxInbreeding float64
	Transfer               TransferSettings
	CullFraction           float64
	ReplacementBuffer      int
}

// TraitByID returns the trait with the given id.
func (c SimulationConfig) TraitByID(id int) (Trait, bool) {
	for _, t := range c.Traits {
		if t.ID == id {
			return t, true
		}
	}
	return Trait{}, false
}
