// Package kernel wraps the Google Mangle Datalog engine for deontic
// reasoning. The conflict taxonomy's modality rules live here as a Datalog
// program; Go code asserts statement and proposition-similarity facts and
// reads the derived conflict pairs back out. Keeping the derivation in the
// logic engine keeps the rule set declarative and auditable.
package kernel

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// DeonticSchema declares the fact shapes and the conflict derivation rules.
// Modalities are name constants; ids, entities and propositions stay plain
// strings so they round-trip unchanged.
const DeonticSchema = `
Decl statement(Id, Entity, Modality, Prop).
Decl same_prop(A, B).
Decl conflict_pair(A, B, Kind).

conflict_pair(A, B, /obligation_prohibition) :-
    statement(A, E, /obligation, P1),
    statement(B, E, /prohibition, P2),
    same_prop(A, B).

conflict_pair(A, B, /permission_prohibition) :-
    statement(A, E, /permission, P1),
    statement(B, E, /prohibition, P2),
    same_prop(A, B).
`

// Engine is a small, single-purpose Mangle wrapper: load one schema, assert
// facts, evaluate, read derived facts.
type Engine struct {
	mu          sync.Mutex
	programInfo *analysis.ProgramInfo
	store       factstore.FactStoreWithRemove
	predicates  map[string]ast.PredicateSym
}

// New compiles the deontic schema and returns a ready engine.
func New() (*Engine, error) {
	return NewWithSchema(DeonticSchema)
}

// NewWithSchema compiles an arbitrary schema. Exposed for tests that
// exercise the wrapper independent of the deontic rules.
func NewWithSchema(schema string) (*Engine, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(schema)))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze schema: %w", err)
	}

	e := &Engine{
		programInfo: programInfo,
		store:       factstore.NewSimpleInMemoryStore(),
		predicates:  make(map[string]ast.PredicateSym, len(programInfo.Decls)),
	}
	for sym := range programInfo.Decls {
		e.predicates[sym.Symbol] = sym
	}
	return e, nil
}

// Reset drops all facts, keeping the compiled program.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = factstore.NewSimpleInMemoryStore()
}

// AddFact asserts one fact. Strings prefixed with "/" become name
// constants; everything else keeps its literal type.
func (e *Engine) AddFact(predicate string, args ...any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.predicates[predicate]
	if !ok {
		return fmt.Errorf("predicate %s is not declared in the schema", predicate)
	}
	if len(args) != sym.Arity {
		return fmt.Errorf("predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}

	terms := make([]ast.BaseTerm, len(args))
	for i, raw := range args {
		term, err := toBaseTerm(raw)
		if err != nil {
			return fmt.Errorf("predicate %s arg %d: %w", predicate, i, err)
		}
		terms[i] = term
	}
	e.store.Add(ast.Atom{Predicate: sym, Args: terms})
	return nil
}

// Derive evaluates the program rules against the current facts.
func (e *Engine) Derive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := mengine.EvalProgramWithStats(e.programInfo, e.store); err != nil {
		return fmt.Errorf("evaluate deontic rules: %w", err)
	}
	return nil
}

// FactsFor returns the argument tuples of all stored facts for a predicate,
// including derived ones after Derive.
func (e *Engine) FactsFor(predicate string) ([][]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.predicates[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared in the schema", predicate)
	}

	var out [][]any
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		row := make([]any, len(atom.Args))
		for i, arg := range atom.Args {
			row[i] = fromBaseTerm(arg)
		}
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// toBaseTerm converts a Go value to a Mangle term. Unlike the general
// engines this wrapper never promotes identifier-like strings to names, so
// statement ids and propositions survive the round trip byte for byte.
func toBaseTerm(value any) (ast.BaseTerm, error) {
	switch v := value.(type) {
	case ast.BaseTerm:
		return v, nil
	case string:
		if strings.HasPrefix(v, "/") {
			name, err := ast.Name(v)
			if err != nil {
				return nil, err
			}
			return name, nil
		}
		return ast.String(v), nil
	case int:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case float64:
		return ast.Float64(v), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return nil, fmt.Errorf("unsupported fact argument type %T", v)
	}
}

// fromBaseTerm converts a Mangle constant back to a Go value. Names keep
// their leading slash.
func fromBaseTerm(term ast.BaseTerm) any {
	c, ok := term.(ast.Constant)
	if !ok {
		return term.String()
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(c.NumValue))
	default:
		return c.String()
	}
}
