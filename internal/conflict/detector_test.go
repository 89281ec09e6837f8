package conflict

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"normlex/internal/types"
)

func stmt(id, entity string, op types.DeonticOperator, prop string) types.DeonticStatement {
	return types.DeonticStatement{ID: id, Entity: entity, Operator: op, Proposition: prop}
}

func TestObligationProhibitionConflict(t *testing.T) {
	d := NewDetector(nil)

	got := d.DetectConflicts([]types.DeonticStatement{
		stmt("s1", "tenant", types.Obligation, "pay rent"),
		stmt("s2", "tenant", types.Prohibition, "pay rent"),
	})

	if len(got) != 1 {
		t.Fatalf("conflicts = %d, want exactly 1: %+v", len(got), got)
	}
	c := got[0]
	if c.Type != types.ConflictObligationProhibition {
		t.Fatalf("type = %s, want OBLIGATION_PROHIBITION", c.Type)
	}
	if c.Severity != types.SeverityHigh {
		t.Fatalf("severity = %s, want high", c.Severity)
	}
	if c.ID != "conflict_s1_s2" {
		t.Fatalf("id = %s, want conflict_s1_s2", c.ID)
	}
}

func TestPermissionProhibitionConflict(t *testing.T) {
	d := NewDetector(nil)

	got := d.DetectConflicts([]types.DeonticStatement{
		stmt("s1", "tenant", types.Permission, "keep pets"),
		stmt("s2", "tenant", types.Prohibition, "keep pets"),
	})

	if len(got) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(got))
	}
	if got[0].Type != types.ConflictPermissionProhibition || got[0].Severity != types.SeverityHigh {
		t.Fatalf("got %s/%s, want PERMISSION_PROHIBITION/high", got[0].Type, got[0].Severity)
	}
}

func TestNoConflictCases(t *testing.T) {
	d := NewDetector(nil)

	cases := []struct {
		name       string
		statements []types.DeonticStatement
	}{
		{
			name: "unrelated_propositions",
			statements: []types.DeonticStatement{
				stmt("s1", "tenant", types.Obligation, "alpha"),
				stmt("s2", "tenant", types.Prohibition, "omega"),
			},
		},
		{
			name: "different_entities",
			statements: []types.DeonticStatement{
				stmt("s1", "tenant", types.Obligation, "pay rent"),
				stmt("s2", "landlord", types.Prohibition, "pay rent"),
			},
		},
		{
			name: "obligation_vs_permission",
			statements: []types.DeonticStatement{
				stmt("s1", "tenant", types.Obligation, "pay rent"),
				stmt("s2", "tenant", types.Permission, "pay rent"),
			},
		},
		{
			name: "malformed_statement",
			statements: []types.DeonticStatement{
				{ID: "s1", Entity: "tenant", Operator: "GIBBERISH", Proposition: "pay rent"},
				stmt("s2", "tenant", types.Prohibition, "pay rent"),
			},
		},
		{
			name:       "empty_input",
			statements: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.DetectConflicts(tc.statements); len(got) != 0 {
				t.Fatalf("conflicts = %+v, want none", got)
			}
		})
	}
}

func TestConditionalConflict(t *testing.T) {
	d := NewDetector(nil)

	a := stmt("s1", "employer", types.Obligation, "report incident")
	b := stmt("s2", "employer", types.Prohibition, "report incident")
	a.Conditions = []string{"during probation"}
	b.Conditions = []string{"during probation"}

	got := d.DetectConflicts([]types.DeonticStatement{a, b})
	if len(got) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(got))
	}
	if got[0].Type != types.ConflictConditional || got[0].Severity != types.SeverityMedium {
		t.Fatalf("got %s/%s, want CONDITIONAL_CONFLICT/medium", got[0].Type, got[0].Severity)
	}
}

func TestJurisdictionalConflict(t *testing.T) {
	d := NewDetector(nil)

	a := stmt("s1", "carrier", types.Obligation, "disclose fees")
	b := stmt("s2", "carrier", types.Prohibition, "disclose fees")
	a.SourceDocument = "state_statute_12"
	b.SourceDocument = "federal_rule_9"

	got := d.DetectConflicts([]types.DeonticStatement{a, b})
	if len(got) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(got))
	}
	if got[0].Type != types.ConflictJurisdictional || got[0].Severity != types.SeverityMedium {
		t.Fatalf("got %s/%s, want JURISDICTIONAL/medium", got[0].Type, got[0].Severity)
	}
	if len(got[0].Suggestions) == 0 {
		t.Fatal("jurisdictional conflict must carry precedence suggestions")
	}
}

func TestDeterministicOutput(t *testing.T) {
	d := NewDetector(nil)

	statements := []types.DeonticStatement{
		stmt("a1", "tenant", types.Obligation, "pay rent"),
		stmt("a2", "tenant", types.Prohibition, "pay rent"),
		stmt("b1", "landlord", types.Permission, "enter premises"),
		stmt("b2", "landlord", types.Prohibition, "enter premises"),
	}

	first := d.DetectConflicts(statements)
	second := d.DetectConflicts(statements)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("detection not deterministic (-first +second):\n%s", diff)
	}
	if len(first) != 2 {
		t.Fatalf("conflicts = %d, want 2", len(first))
	}
	if first[0].ID != "conflict_a1_a2" || first[1].ID != "conflict_b1_b2" {
		t.Fatalf("ids = %s, %s", first[0].ID, first[1].ID)
	}
}

func TestEntityGroupingBoundsComparisons(t *testing.T) {
	d := NewDetector(nil)

	// Many entities with one statement each: no pairs, no conflicts.
	var statements []types.DeonticStatement
	for i := 0; i < 200; i++ {
		statements = append(statements, stmt(
			fmt.Sprintf("s%d", i),
			fmt.Sprintf("entity_%d", i),
			types.Obligation,
			"perform duty",
		))
	}
	if got := d.DetectConflicts(statements); len(got) != 0 {
		t.Fatalf("singleton groups produced conflicts: %d", len(got))
	}
}

func TestTokenSimilarity(t *testing.T) {
	s := DefaultSimilarity()

	cases := []struct {
		a, b    string
		related bool
		same    bool
	}{
		{"pay rent", "pay rent", true, true},
		{"pay the rent", "pay rent", true, true},
		{"pay rent", "collect rent", true, false},
		{"alpha", "omega", false, false},
		{"", "", false, false},
	}
	for _, tc := range cases {
		if got := s.Related(tc.a, tc.b); got != tc.related {
			t.Errorf("Related(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.related)
		}
		if got := s.Same(tc.a, tc.b); got != tc.same {
			t.Errorf("Same(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.same)
		}
	}
}
