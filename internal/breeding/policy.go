package breeding

import (
	"genesim/internal/creature"
	"genesim/pkg/domain"
)

// Default transfer settings.
const (
	DefaultSelectiveClubMaleTransfer    = 0.15
	DefaultSelectiveClubFemaleTransfers = 3.0
	DefaultHighVolumeTransfer           = 0.02
	DefaultBaselineTransfer             = 0.12
)

// TransferPolicy decides how likely an owned animal is to change hands in a
// cycle and who may receive it.
type TransferPolicy struct {
	settings        domain.TransferSettings
	averageLifespan float64
}

// NewTransferPolicy binds transfer settings to the archetype's lifespan.
func NewTransferPolicy(settings domain.TransferSettings, arch domain.Archetype) TransferPolicy {
	return TransferPolicy{settings: settings, averageLifespan: arch.AverageLifespan()}
}

// Limit is the number of transfers allowed per cycle.
func (p TransferPolicy) Limit() int {
	if p.settings.MaxPerCycle <= 0 {
		return 1
	}
	return p.settings.MaxPerCycle
}

// Probability returns the per-cycle transfer chance for an animal of the sex
// owned by a breeder of the variant.
func (p TransferPolicy) Probability(owner domain.BreederVariant, sex domain.Sex) float64 {
	switch owner {
	case domain.VariantSelectiveClub:
		if sex == domain.SexMale {
			return p.settings.SelectiveClubMale
		}
		if p.averageLifespan <= 0 {
			return 0
		}
		return p.settings.SelectiveClubFemaleTransfers / p.averageLifespan
	case domain.VariantHighVolume:
		return p.settings.HighVolume
	}
	return p.settings.Default
}

// Transferable reports whether an animal may be moved this cycle: owned, a
// proven parent, and neither gestating nor nursing.
func Transferable(ind *creature.Individual, cycle int) bool {
	return ind.BreederID != 0 && ind.HasProduced && !ind.Gestating(cycle) && !ind.Nursing(cycle)
}

// Destinations lists the breeders that may receive the animal from its
// current owner.
func (p TransferPolicy) Destinations(ind *creature.Individual, breeders []*Breeder) []*Breeder {
	var owner, origin *Breeder
	for _, b := range breeders {
		if b.ID == ind.BreederID {
			owner = b
		}
		if b.ID == ind.ProducedByID {
			origin = b
		}
	}
	if owner == nil {
		return nil
	}
	var out []*Breeder
	for _, b := range breeders {
		if b.ID == owner.ID || !owner.Variant().SendsTo(b.Variant()) {
			continue
		}
		if origin != nil && !b.Variant().AcceptsOrigin(origin.Variant()) {
			continue
		}
		out = append(out, b)
	}
	return out
}
