package report

import (
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"genesim/internal/core"
	"genesim/pkg/domain"
)

// Moments summarises one per-cycle series.
type Moments struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

// TraitSummary is the end-of-run state of one trait.
type TraitSummary struct {
	TraitID            int                `json:"trait_id"`
	Heterozygosity     Moments            `json:"heterozygosity"`
	FinalGenotypes     map[string]float64 `json:"final_genotype_frequencies"`
	FinalAlleles       map[string]float64 `json:"final_allele_frequencies"`
	FinalGenotypeCount int                `json:"final_genotype_diversity"`
}

// Summary is the content of summary.json.
type Summary struct {
	RunKey          string         `json:"run_key"`
	SimulationID    int64          `json:"simulation_id"`
	Seed            uint64         `json:"seed"`
	Cycles          int            `json:"cycles"`
	FinalPopulation int            `json:"final_population"`
	Created         int            `json:"created"`
	Warnings        int            `json:"rule_warnings"`
	Population      Moments        `json:"population"`
	Births          Moments        `json:"births"`
	Deaths          Moments        `json:"deaths"`
	Homed           Moments        `json:"homed"`
	Transfers       Moments        `json:"transfers"`
	Traits          []TraitSummary `json:"traits"`
	StartedAt       time.Time      `json:"started_at,omitzero"`
	FinishedAt      time.Time      `json:"finished_at,omitzero"`
	DurationSeconds float64        `json:"duration_seconds"`
}

func moments(xs []float64) Moments {
	if len(xs) == 0 {
		return Moments{}
	}
	m := Moments{Min: floats.Min(xs), Max: floats.Max(xs), Total: floats.Sum(xs)}
	if len(xs) == 1 {
		m.Mean = xs[0]
		return m
	}
	m.Mean, m.StdDev = stat.MeanStdDev(xs, nil)
	return m
}

func series(stats []domain.CycleStats, f func(domain.CycleStats) float64) []float64 {
	out := make([]float64, len(stats))
	for i, s := range stats {
		out[i] = f(s)
	}
	return out
}

// Summarize computes the run summary.
func Summarize(res core.RunResult, seed uint64) Summary {
	cs := res.Cycles
	sum := Summary{
		RunKey:          res.RunKey,
		SimulationID:    res.SimulationID,
		Seed:            seed,
		Cycles:          len(cs),
		FinalPopulation: res.FinalPopulation,
		Created:         res.Created,
		Warnings:        res.Warnings,
		Population:      moments(series(cs, func(s domain.CycleStats) float64 { return float64(s.PopulationSize) })),
		Births:          moments(series(cs, func(s domain.CycleStats) float64 { return float64(s.Births) })),
		Deaths:          moments(series(cs, func(s domain.CycleStats) float64 { return float64(s.Deaths) })),
		Homed:           moments(series(cs, func(s domain.CycleStats) float64 { return float64(s.HomedOut) })),
		Transfers:       moments(series(cs, func(s domain.CycleStats) float64 { return float64(s.Transfers) })),
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
	if !res.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
		sum.DurationSeconds = res.FinishedAt.Sub(res.StartedAt).Seconds()
	}
	if len(cs) == 0 {
		return sum
	}
	last := cs[len(cs)-1]
	for _, id := range traitIDs(last) {
		sum.Traits = append(sum.Traits, TraitSummary{
			TraitID:            id,
			Heterozygosity:     moments(series(cs, func(s domain.CycleStats) float64 { return s.Heterozygosity[id] })),
			FinalGenotypes:     last.GenotypeFrequencies[id],
			FinalAlleles:       last.AlleleFrequencies[id],
			FinalGenotypeCount: last.GenotypeDiversity[id],
		})
	}
	return sum
}

// JSON renders the summary with indentation.
func (s Summary) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return append(data, '\n'), nil
}
