package core

import (
	"context"
	"fmt"

	"genesim/pkg/domain"
)

// BreederCapacityRule warns when a breeder holds more living animals than its
// configured capacity. Capacity is a soft cap: flagged stock may overlap with
// its replacements until it ages out.
func BreederCapacityRule() domain.Rule {
	return breederCapacityRule{}
}

type breederCapacityRule struct{}

func (breederCapacityRule) Name() string { return "breeder_capacity" }

func (breederCapacityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, b := range view.ListBreeders() {
		if b.MaxCreatures <= 0 {
			continue
		}
		owned := view.OwnedCount(b.ID)
		if owned <= b.MaxCreatures {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "breeder_capacity",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("breeder %d owns %d animals, capacity %d at cycle %d", b.ID, owned, b.MaxCreatures, view.Cycle()),
			Entity:   domain.EntityBreeder,
			EntityID: b.ID,
		})
	}
	return res, nil
}
