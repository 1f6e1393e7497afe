package domain

import "context"

// RuleView provides read-only access to the working population for rule evaluation.
type RuleView interface {
	Cycle() int
	ListBreeders() []BreederRecord
	// OwnedCount is the number of living, unhomed individuals a breeder owns.
	OwnedCount(breederID int64) int
	// KnownIndividual reports whether the individual was persisted and either
	// alive when the cycle began or created during it.
	KnownIndividual(id int64) bool
}

// Rule defines an evaluation executed at the end of every cycle.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
