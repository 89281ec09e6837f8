package kernel

import "testing"

func TestDeonticConflictDerivation(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	facts := []struct {
		pred string
		args []any
	}{
		{"statement", []any{"s1", "tenant", "/obligation", "pay rent"}},
		{"statement", []any{"s2", "tenant", "/prohibition", "pay rent"}},
		{"statement", []any{"s3", "landlord", "/permission", "enter premises"}},
		{"same_prop", []any{"s1", "s2"}},
	}
	for _, f := range facts {
		if err := e.AddFact(f.pred, f.args...); err != nil {
			t.Fatalf("AddFact(%s) error = %v", f.pred, err)
		}
	}

	if err := e.Derive(); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	pairs, err := e.FactsFor("conflict_pair")
	if err != nil {
		t.Fatalf("FactsFor() error = %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("conflict_pair count = %d, want 1: %v", len(pairs), pairs)
	}
	row := pairs[0]
	if row[0] != "s1" || row[1] != "s2" || row[2] != "/obligation_prohibition" {
		t.Fatalf("conflict_pair = %v", row)
	}
}

func TestNoConflictAcrossEntities(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	mustAdd := func(pred string, args ...any) {
		t.Helper()
		if err := e.AddFact(pred, args...); err != nil {
			t.Fatalf("AddFact(%s) error = %v", pred, err)
		}
	}
	mustAdd("statement", "s1", "tenant", "/obligation", "pay rent")
	mustAdd("statement", "s2", "landlord", "/prohibition", "pay rent")
	mustAdd("same_prop", "s1", "s2")

	if err := e.Derive(); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	pairs, err := e.FactsFor("conflict_pair")
	if err != nil {
		t.Fatalf("FactsFor() error = %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("cross-entity pair must not conflict: %v", pairs)
	}
}

func TestAddFactValidation(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.AddFact("unknown_pred", "x"); err == nil {
		t.Fatal("undeclared predicate must error")
	}
	if err := e.AddFact("same_prop", "only_one"); err == nil {
		t.Fatal("arity mismatch must error")
	}
}

func TestReset(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.AddFact("same_prop", "a", "b"); err != nil {
		t.Fatalf("AddFact error = %v", err)
	}
	e.Reset()
	facts, err := e.FactsFor("same_prop")
	if err != nil {
		t.Fatalf("FactsFor error = %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("Reset left %d facts", len(facts))
	}
}
