// Package prover executes formal verification backends over deontic
// formulas: translate to backend syntax, run the external binary under a
// hard timeout, classify the outcome, cache the result. Backend binaries
// are probed exactly once at engine construction.
package prover

import (
	"fmt"
	"strings"
	"unicode"

	"normlex/internal/types"
)

// Translator renders deontic formulas as source text for one backend.
// Translation failures abort before any process is spawned.
type Translator interface {
	Name() string
	FileExtension() string
	TranslateFormula(f types.DeonticFormula) (string, error)
	TranslateRuleSet(fs []types.DeonticFormula) (string, error)
}

// symbolFor turns free text into a backend-safe identifier. Deterministic:
// the same proposition always yields the same symbol.
func symbolFor(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "prop"
	}
	if unicode.IsDigit(rune(s[0])) {
		s = "p_" + s
	}
	return s
}

// SMTTranslator emits SMT-LIB2 scripts for z3. Each (agent, proposition)
// pair becomes one Bool meaning "the action is permitted"; an obligation
// asserts it, a prohibition asserts its negation. A conflicting rule set is
// therefore unsat, a coherent one sat.
type SMTTranslator struct{}

func (SMTTranslator) Name() string          { return "smt" }
func (SMTTranslator) FileExtension() string { return ".smt2" }

func (t SMTTranslator) TranslateFormula(f types.DeonticFormula) (string, error) {
	return t.TranslateRuleSet([]types.DeonticFormula{f})
}

func (t SMTTranslator) TranslateRuleSet(fs []types.DeonticFormula) (string, error) {
	if len(fs) == 0 {
		return "", fmt.Errorf("empty rule set")
	}

	var b strings.Builder
	b.WriteString("(set-logic QF_UF)\n")

	declared := make(map[string]struct{})
	var asserts []string
	for _, f := range fs {
		if !f.Operator.Valid() || strings.TrimSpace(f.Proposition) == "" {
			return "", fmt.Errorf("cannot translate malformed formula %q", f.CanonicalText())
		}
		sym := "permitted_" + symbolFor(f.Agent+" "+f.Proposition)
		if _, ok := declared[sym]; !ok {
			declared[sym] = struct{}{}
			fmt.Fprintf(&b, "(declare-const %s Bool)\n", sym)
		}
		switch f.Operator {
		case types.Prohibition:
			asserts = append(asserts, fmt.Sprintf("(assert (not %s))", sym))
		default:
			// Obligation implies permission (axiom D); permission and
			// right assert it directly.
			asserts = append(asserts, fmt.Sprintf("(assert %s)", sym))
		}
	}
	for _, a := range asserts {
		b.WriteString(a)
		b.WriteByte('\n')
	}
	b.WriteString("(check-sat)\n")
	return b.String(), nil
}

// LeanTranslator emits Lean 4 source proving the D-axiom instantiation for
// each formula: from obligation, permission follows. The proof compiles for
// any well-formed formula; the backend's value here is syntax-level
// validation of the encoding, not conflict search.
type LeanTranslator struct{}

func (LeanTranslator) Name() string          { return "lean" }
func (LeanTranslator) FileExtension() string { return ".lean" }

func (t LeanTranslator) TranslateFormula(f types.DeonticFormula) (string, error) {
	return t.TranslateRuleSet([]types.DeonticFormula{f})
}

func (t LeanTranslator) TranslateRuleSet(fs []types.DeonticFormula) (string, error) {
	if len(fs) == 0 {
		return "", fmt.Errorf("empty rule set")
	}

	var b strings.Builder
	b.WriteString("namespace Deontic\n\n")
	b.WriteString("axiom Ob : Prop -> Prop\n")
	b.WriteString("axiom Pm : Prop -> Prop\n")
	b.WriteString("axiom d_axiom : forall p : Prop, Ob p -> Pm p\n\n")

	declared := make(map[string]struct{})
	for i, f := range fs {
		if !f.Operator.Valid() || strings.TrimSpace(f.Proposition) == "" {
			return "", fmt.Errorf("cannot translate malformed formula %q", f.CanonicalText())
		}
		sym := symbolFor(f.Agent + " " + f.Proposition)
		if _, ok := declared[sym]; !ok {
			declared[sym] = struct{}{}
			fmt.Fprintf(&b, "axiom %s : Prop\n", sym)
		}
		fmt.Fprintf(&b, "theorem formula_%d : Ob %s -> Pm %s := d_axiom %s\n", i, sym, sym, sym)
	}

	b.WriteString("\nend Deontic\n")
	return b.String(), nil
}

// CoqTranslator emits Coq vernacular with the same D-axiom encoding as the
// Lean backend.
type CoqTranslator struct{}

func (CoqTranslator) Name() string          { return "coq" }
func (CoqTranslator) FileExtension() string { return ".v" }

func (t CoqTranslator) TranslateFormula(f types.DeonticFormula) (string, error) {
	return t.TranslateRuleSet([]types.DeonticFormula{f})
}

func (t CoqTranslator) TranslateRuleSet(fs []types.DeonticFormula) (string, error) {
	if len(fs) == 0 {
		return "", fmt.Errorf("empty rule set")
	}

	var b strings.Builder
	b.WriteString("Parameter Ob Pm : Prop -> Prop.\n")
	b.WriteString("Axiom d_axiom : forall p : Prop, Ob p -> Pm p.\n\n")

	declared := make(map[string]struct{})
	for i, f := range fs {
		if !f.Operator.Valid() || strings.TrimSpace(f.Proposition) == "" {
			return "", fmt.Errorf("cannot translate malformed formula %q", f.CanonicalText())
		}
		sym := symbolFor(f.Agent + " " + f.Proposition)
		if _, ok := declared[sym]; !ok {
			declared[sym] = struct{}{}
			fmt.Fprintf(&b, "Parameter %s : Prop.\n", sym)
		}
		fmt.Fprintf(&b, "Theorem formula_%d : Ob %s -> Pm %s.\nProof. apply d_axiom. Qed.\n", i, sym, sym)
	}
	return b.String(), nil
}
