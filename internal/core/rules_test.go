package core

import (
	"context"
	"strings"
	"testing"

	"genesim/pkg/domain"
)

type fakeView struct {
	cycle    int
	breeders []domain.BreederRecord
	owned    map[int64]int
	known    map[int64]bool
}

func (v fakeView) Cycle() int                          { return v.cycle }
func (v fakeView) ListBreeders() []domain.BreederRecord { return v.breeders }
func (v fakeView) OwnedCount(id int64) int             { return v.owned[id] }
func (v fakeView) KnownIndividual(id int64) bool       { return v.known[id] }

func created(rec domain.IndividualRecord) domain.Change {
	return domain.Change{Entity: domain.EntityIndividual, Action: domain.ActionCreate, After: rec}
}

func TestLineageIntegrityRule(t *testing.T) {
	view := fakeView{known: map[int64]bool{1: true, 2: true}}
	cases := []struct {
		name    string
		rec     domain.IndividualRecord
		message string
	}{
		{name: "founder", rec: domain.IndividualRecord{ID: 10}},
		{name: "resolved parents", rec: domain.IndividualRecord{ID: 10, Parent1ID: 1, Parent2ID: 2}},
		{name: "single parent", rec: domain.IndividualRecord{ID: 10, Parent1ID: 1}, message: "only one parent"},
		{name: "duplicated parent", rec: domain.IndividualRecord{ID: 10, Parent1ID: 1, Parent2ID: 1}, message: "twice"},
		{name: "self parent", rec: domain.IndividualRecord{ID: 2, Parent1ID: 1, Parent2ID: 2}, message: "itself"},
		{name: "unresolved parent", rec: domain.IndividualRecord{ID: 10, Parent1ID: 1, Parent2ID: 99}, message: "unresolved parent 99"},
	}
	rule := LineageIntegrityRule()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rule.Evaluate(context.Background(), view, []domain.Change{created(tc.rec)})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if tc.message == "" {
				if len(res.Violations) != 0 {
					t.Fatalf("expected no violations, got %+v", res.Violations)
				}
				return
			}
			if len(res.Violations) != 1 || !res.HasBlocking() {
				t.Fatalf("expected one blocking violation, got %+v", res.Violations)
			}
			if !strings.Contains(res.Violations[0].Message, tc.message) || res.Violations[0].EntityID != tc.rec.ID {
				t.Fatalf("unexpected violation %+v", res.Violations[0])
			}
		})
	}
}

func TestLineageIntegrityIgnoresUpdates(t *testing.T) {
	change := domain.Change{Entity: domain.EntityIndividual, Action: domain.ActionUpdate, After: domain.IndividualRecord{ID: 3, Parent1ID: 3}}
	res, err := LineageIntegrityRule().Evaluate(context.Background(), fakeView{}, []domain.Change{change})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected updates to be ignored, got %+v (%v)", res, err)
	}
}

func TestInbreedingBoundsRule(t *testing.T) {
	changes := []domain.Change{
		created(domain.IndividualRecord{ID: 1, Inbreeding: 0}),
		created(domain.IndividualRecord{ID: 2, Inbreeding: 1}),
		created(domain.IndividualRecord{ID: 3, Inbreeding: 1.25}),
		created(domain.IndividualRecord{ID: 4, Inbreeding: -0.1}),
	}
	res, err := InbreedingBoundsRule().Evaluate(context.Background(), fakeView{}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].EntityID != 3 || res.Violations[1].EntityID != 4 {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
}

func TestBreederCapacityRuleWarns(t *testing.T) {
	view := fakeView{
		cycle: 4,
		breeders: []domain.BreederRecord{
			{ID: 1, MaxCreatures: 5},
			{ID: 2, MaxCreatures: 5},
			{ID: 3},
		},
		owned: map[int64]int{1: 5, 2: 7, 3: 100},
	}
	res, err := BreederCapacityRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != 2 {
		t.Fatalf("expected a single violation for breeder 2, got %+v", res.Violations)
	}
	if res.HasBlocking() || res.Count(SeverityWarn) != 1 {
		t.Fatalf("capacity violations must only warn: %+v", res.Violations)
	}
}

func TestDefaultRulesEngineRegistersBuiltIns(t *testing.T) {
	var names []string
	for _, rule := range NewDefaultRulesEngine().Rules() {
		names = append(names, rule.Name())
	}
	want := "lineage_integrity,inbreeding_bounds,breeder_capacity"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("rules = %s, want %s", got, want)
	}
}
