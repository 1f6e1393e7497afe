package genetics

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"genesim/pkg/domain"
)

// ErrMissingGenotype is returned when an individual carries no genotype for a trait.
var ErrMissingGenotype = errors.New("missing genotype")

// Gamete holds the alleles one parent contributes for a trait, one per gene pair.
type Gamete []string

// MakeGamete draws one allele per gene pair. Hemizygous genotypes pass their
// single allele through without consuming randomness.
func MakeGamete(g Genotype, rng *rand.Rand) (Gamete, error) {
	switch v := g.(type) {
	case nil:
		return nil, ErrMissingGenotype
	case Diploid:
		return Gamete{pick(v, rng)}, nil
	case Hemizygous:
		return Gamete{v.Allele}, nil
	case Polygenic:
		out := make(Gamete, len(v))
		for i, pair := range v {
			out[i] = pick(pair, rng)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported genotype %T", g)
}

func pick(d Diploid, rng *rand.Rand) string {
	if rng.IntN(2) == 0 {
		return d.A
	}
	return d.B
}

// Combine builds the offspring genotype from the maternal and paternal
// gametes. Sons inherit only the maternal allele of a sex-linked trait.
func Combine(maternal, paternal Gamete, traitType domain.TraitType, offspringSex domain.Sex) (Genotype, error) {
	if len(maternal) == 0 || len(paternal) == 0 {
		return nil, ErrMissingGenotype
	}
	switch traitType {
	case domain.TraitSexLinked:
		if offspringSex == domain.SexMale {
			return Hemizygous{Allele: maternal[0]}, nil
		}
		return NewDiploid(maternal[0], paternal[0]), nil
	case domain.TraitPolygenic:
		if len(maternal) != len(paternal) {
			return nil, fmt.Errorf("%w: gamete pair counts differ (%d vs %d)", ErrMalformedGenotype, len(maternal), len(paternal))
		}
		out := make(Polygenic, len(maternal))
		for i := range maternal {
			out[i] = NewDiploid(maternal[i], paternal[i])
		}
		return out, nil
	}
	return NewDiploid(maternal[0], paternal[0]), nil
}
