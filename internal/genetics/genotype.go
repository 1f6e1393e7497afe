// Package genetics implements genotype parsing, gamete production, offspring
// genotype synthesis, and the pedigree coefficients used during pairing.
package genetics

import (
	"errors"
	"fmt"
	"strings"

	"genesim/pkg/domain"
)

// PolygenicSeparator joins gene-pair segments in polygenic genotype strings.
const PolygenicSeparator = "_"

// ErrMalformedGenotype is returned when a genotype string cannot be parsed
// for its trait type.
var ErrMalformedGenotype = errors.New("malformed genotype")

// Genotype is one of Diploid, Hemizygous or Polygenic.
type Genotype interface {
	// String returns the canonical encoding.
	String() string
	// Alleles returns every allele carried, in canonical order.
	Alleles() []string
	// Heterozygous reports whether any gene pair carries two distinct alleles.
	Heterozygous() bool
	isGenotype()
}

// Diploid is a pair of alleles at one locus.
type Diploid struct {
	A, B string
}

// NewDiploid returns a canonical diploid genotype with the alleles sorted so
// uppercase (dominant) alleles come first.
func NewDiploid(a, b string) Diploid {
	if b < a {
		a, b = b, a
	}
	return Diploid{A: a, B: b}
}

func (d Diploid) String() string     { return d.A + d.B }
func (d Diploid) Alleles() []string  { return []string{d.A, d.B} }
func (d Diploid) Heterozygous() bool { return d.A != d.B }
func (Diploid) isGenotype()          {}

// Hemizygous is a single allele carried by a male on a sex chromosome.
type Hemizygous struct {
	Allele string
}

func (h Hemizygous) String() string    { return h.Allele }
func (h Hemizygous) Alleles() []string { return []string{h.Allele} }
func (Hemizygous) Heterozygous() bool  { return false }
func (Hemizygous) isGenotype()         {}

// Polygenic is an ordered list of independent gene pairs.
type Polygenic []Diploid

func (p Polygenic) String() string {
	parts := make([]string, len(p))
	for i, pair := range p {
		parts[i] = pair.String()
	}
	return strings.Join(parts, PolygenicSeparator)
}

func (p Polygenic) Alleles() []string {
	out := make([]string, 0, len(p)*2)
	for _, pair := range p {
		out = append(out, pair.A, pair.B)
	}
	return out
}

func (p Polygenic) Heterozygous() bool {
	for _, pair := range p {
		if pair.Heterozygous() {
			return true
		}
	}
	return false
}

func (Polygenic) isGenotype() {}

// Parse decodes a genotype string for a trait type and carrier sex. Male
// carriers of sex-linked traits are hemizygous; every other non-polygenic
// genotype is split into two equal-length alleles.
func Parse(s string, traitType domain.TraitType, sex domain.Sex) (Genotype, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty genotype", ErrMalformedGenotype)
	}
	switch traitType {
	case domain.TraitPolygenic:
		segments := strings.Split(s, PolygenicSeparator)
		out := make(Polygenic, 0, len(segments))
		for _, seg := range segments {
			pair, err := parseDiploid(seg)
			if err != nil {
				return nil, fmt.Errorf("polygenic %q: %w", s, err)
			}
			out = append(out, pair)
		}
		return out, nil
	case domain.TraitSexLinked:
		if sex == domain.SexMale {
			return Hemizygous{Allele: s}, nil
		}
		return parseDiploid(s)
	case domain.TraitSimpleMendelian, domain.TraitIncompleteDominance, domain.TraitCodominant:
		return parseDiploid(s)
	}
	return nil, fmt.Errorf("unknown trait type %q", traitType)
}

// MustParse is Parse for inputs known to be valid; it panics on error.
func MustParse(s string, traitType domain.TraitType, sex domain.Sex) Genotype {
	g, err := Parse(s, traitType, sex)
	if err != nil {
		panic(err)
	}
	return g
}

// Canonical re-encodes a genotype string in canonical allele order.
func Canonical(s string, traitType domain.TraitType, sex domain.Sex) (string, error) {
	g, err := Parse(s, traitType, sex)
	if err != nil {
		return "", err
	}
	return g.String(), nil
}

func parseDiploid(s string) (Diploid, error) {
	if len(s) < 2 || len(s)%2 != 0 {
		return Diploid{}, fmt.Errorf("%w: %q does not split into two alleles", ErrMalformedGenotype, s)
	}
	half := len(s) / 2
	return NewDiploid(s[:half], s[half:]), nil
}
