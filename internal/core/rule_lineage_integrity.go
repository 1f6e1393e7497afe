package core

import (
	"context"
	"fmt"

	"genesim/pkg/domain"
)

// LineageIntegrityRule blocks offspring whose pedigree is self-referential,
// duplicated, or points at individuals the run never persisted.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, child := range createdIndividuals(changes) {
		if child.Parent1ID == 0 && child.Parent2ID == 0 {
			continue
		}
		if child.Parent1ID == 0 || child.Parent2ID == 0 {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("individual %d has only one parent", child.ID)))
			continue
		}
		if child.Parent1ID == child.Parent2ID {
			res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("individual %d lists parent %d twice", child.ID, child.Parent1ID)))
			continue
		}
		for _, parentID := range []int64{child.Parent1ID, child.Parent2ID} {
			if parentID == child.ID {
				res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("individual %d references itself as a parent", child.ID)))
				continue
			}
			if !view.KnownIndividual(parentID) {
				res.Violations = append(res.Violations, lineageViolation(child.ID, fmt.Sprintf("individual %d references unresolved parent %d", child.ID, parentID)))
			}
		}
	}
	return res, nil
}

func lineageViolation(entityID int64, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityIndividual,
		EntityID: entityID,
	}
}
