package core

import "genesim/pkg/domain"

type (
	Rule        = domain.Rule
	RuleView    = domain.RuleView
	RulesEngine = domain.RulesEngine
	Result      = domain.Result
	Violation   = domain.Violation
	Change      = domain.Change
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine constructs an engine without rules.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(LineageIntegrityRule())
	engine.Register(InbreedingBoundsRule())
	engine.Register(BreederCapacityRule())
	return engine
}

// createdIndividuals extracts the individual records created in a change set.
func createdIndividuals(changes []domain.Change) []domain.IndividualRecord {
	var out []domain.IndividualRecord
	for _, change := range changes {
		if change.Entity != domain.EntityIndividual || change.Action != domain.ActionCreate || change.After == nil {
			continue
		}
		if rec, ok := change.After.(domain.IndividualRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}
