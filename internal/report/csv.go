// Package report turns finished runs into artifacts: per-cycle CSV tables, a
// statistical summary, the monitor line printed during a run, and the
// bundle published to a blob store.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"genesim/pkg/domain"
)

// CycleRow is one line of stats.csv.
type CycleRow struct {
	Cycle           int `csv:"generation"`
	PopulationSize  int `csv:"population_size"`
	EligibleMales   int `csv:"eligible_males"`
	EligibleFemales int `csv:"eligible_females"`
	Births          int `csv:"births"`
	Deaths          int `csv:"deaths"`
	HomedOut        int `csv:"homed_out"`
	Transfers       int `csv:"transfers"`
}

// TraitRow is one line of trait_stats.csv. Frequency maps are flattened to
// "key=value" pairs joined by ';' in key order.
type TraitRow struct {
	Cycle               int     `csv:"generation"`
	TraitID             int     `csv:"trait_id"`
	Heterozygosity      float64 `csv:"heterozygosity"`
	GenotypeDiversity   int     `csv:"genotype_diversity"`
	GenotypeFrequencies string  `csv:"genotype_frequencies"`
	AlleleFrequencies   string  `csv:"allele_frequencies"`
}

// CycleRows projects cycle records onto stats.csv rows.
func CycleRows(stats []domain.CycleStats) []CycleRow {
	rows := make([]CycleRow, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, CycleRow{
			Cycle:           s.Cycle,
			PopulationSize:  s.PopulationSize,
			EligibleMales:   s.EligibleMales,
			EligibleFemales: s.EligibleFemales,
			Births:          s.Births,
			Deaths:          s.Deaths,
			HomedOut:        s.HomedOut,
			Transfers:       s.Transfers,
		})
	}
	return rows
}

// TraitRows projects cycle records onto trait_stats.csv rows, one per cycle
// and trait, in cycle then trait id order.
func TraitRows(stats []domain.CycleStats) []TraitRow {
	var rows []TraitRow
	for _, s := range stats {
		for _, id := range traitIDs(s) {
			rows = append(rows, TraitRow{
				Cycle:               s.Cycle,
				TraitID:             id,
				Heterozygosity:      s.Heterozygosity[id],
				GenotypeDiversity:   s.GenotypeDiversity[id],
				GenotypeFrequencies: FormatFrequencies(s.GenotypeFrequencies[id]),
				AlleleFrequencies:   FormatFrequencies(s.AlleleFrequencies[id]),
			})
		}
	}
	return rows
}

func traitIDs(s domain.CycleStats) []int {
	seen := make(map[int]struct{})
	for id := range s.GenotypeFrequencies {
		seen[id] = struct{}{}
	}
	for id := range s.Heterozygosity {
		seen[id] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FormatFrequencies renders a frequency map as "a=0.25;b=0.75".
func FormatFrequencies(freq map[string]float64) string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.FormatFloat(freq[k], 'g', -1, 64))
	}
	return strings.Join(parts, ";")
}

// ParseFrequencies is the inverse of FormatFrequencies.
func ParseFrequencies(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("frequency %q: missing '='", part)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("frequency %q: %w", part, err)
		}
		out[k] = f
	}
	return out, nil
}

// WriteCycleCSV writes stats.csv.
func WriteCycleCSV(w io.Writer, stats []domain.CycleStats) error {
	rows := CycleRows(stats)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing cycle stats: %w", err)
	}
	return nil
}

// WriteTraitCSV writes trait_stats.csv.
func WriteTraitCSV(w io.Writer, stats []domain.CycleStats) error {
	rows := TraitRows(stats)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing trait stats: %w", err)
	}
	return nil
}

// ReadCycleCSV parses a stats.csv table.
func ReadCycleCSV(r io.Reader) ([]CycleRow, error) {
	var rows []CycleRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading cycle stats: %w", err)
	}
	return rows, nil
}

// ReadTraitCSV parses a trait_stats.csv table.
func ReadTraitCSV(r io.Reader) ([]TraitRow, error) {
	var rows []TraitRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading trait stats: %w", err)
	}
	return rows, nil
}
