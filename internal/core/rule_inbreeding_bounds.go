package core

import (
	"context"
	"fmt"

	"genesim/pkg/domain"
)

// InbreedingBoundsRule blocks offspring whose inbreeding coefficient falls
// outside [0, 1].
func InbreedingBoundsRule() domain.Rule {
	return inbreedingBoundsRule{}
}

type inbreedingBoundsRule struct{}

func (inbreedingBoundsRule) Name() string { return "inbreeding_bounds" }

func (inbreedingBoundsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, child := range createdIndividuals(changes) {
		if child.Inbreeding >= 0 && child.Inbreeding <= 1 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "inbreeding_bounds",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("individual %d inbreeding coefficient %v outside [0, 1]", child.ID, child.Inbreeding),
			Entity:   domain.EntityIndividual,
			EntityID: child.ID,
		})
	}
	return res, nil
}
