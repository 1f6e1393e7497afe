package genetics

import (
	"fmt"
	"sort"
)

// Outcome is one offspring genotype with its probability.
type Outcome struct {
	Genotype    string
	Probability float64
}

// Punnett expands the offspring genotype distribution for a female and male
// parent. Outcomes are returned in canonical genotype order and their
// probabilities sum to one.
func Punnett(female, male Genotype) ([]Outcome, error) {
	dist, err := punnett(female, male)
	if err != nil {
		return nil, err
	}
	out := make([]Outcome, 0, len(dist))
	for g, p := range dist {
		out = append(out, Outcome{Genotype: g, Probability: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Genotype < out[j].Genotype })
	return out, nil
}

func punnett(female, male Genotype) (map[string]float64, error) {
	switch f := female.(type) {
	case Diploid:
		switch m := male.(type) {
		case Diploid:
			return crossPair(f, m), nil
		case Hemizygous:
			dist := make(map[string]float64, 4)
			for _, a := range f.Alleles() {
				dist[NewDiploid(a, m.Allele).String()] += 0.25
				dist[Hemizygous{Allele: a}.String()] += 0.25
			}
			return dist, nil
		}
	case Polygenic:
		m, ok := male.(Polygenic)
		if !ok || len(m) != len(f) {
			break
		}
		dist := map[string]float64{"": 1}
		for i := range f {
			next := make(map[string]float64)
			for prefix, p := range dist {
				for g, q := range crossPair(f[i], m[i]) {
					key := g
					if prefix != "" {
						key = prefix + PolygenicSeparator + g
					}
					next[key] += p * q
				}
			}
			dist = next
		}
		return dist, nil
	}
	return nil, fmt.Errorf("cannot cross %T with %T", female, male)
}

func crossPair(f, m Diploid) map[string]float64 {
	dist := make(map[string]float64, 3)
	for _, a := range f.Alleles() {
		for _, b := range m.Alleles() {
			dist[NewDiploid(a, b).String()] += 0.25
		}
	}
	return dist
}
