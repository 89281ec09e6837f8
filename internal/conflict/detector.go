// Package conflict classifies pairwise conflicts between deontic statements
// using a fixed taxonomy: operator contradiction, conditional contradiction,
// and jurisdictional contradiction. Statements are grouped by normalized
// entity before any pair is compared, which bounds cost to the sum of
// squared group sizes instead of the square of the corpus.
package conflict

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"normlex/internal/kernel"
	"normlex/internal/logging"
	"normlex/internal/types"
)

// Detector runs the conflict taxonomy over statement sets. When the Datalog
// kernel compiles at construction, the modality-contradiction pairs are
// derived by the logic engine; otherwise the equivalent Go decision table
// runs alone. Both paths produce identical records.
type Detector struct {
	log    *zap.Logger
	sim    Similarity
	kernel *kernel.Engine
}

// NewDetector creates a detector. sim may be nil for the default token
// heuristic. Kernel availability is resolved exactly once here, never
// per call.
func NewDetector(sim Similarity) *Detector {
	log := logging.Named(logging.CategoryConflict)
	if sim == nil {
		sim = DefaultSimilarity()
	}

	eng, err := kernel.New()
	if err != nil {
		log.Warn("deontic kernel unavailable, using in-process decision table", zap.Error(err))
		eng = nil
	}
	return &Detector{log: log, sim: sim, kernel: eng}
}

// pairKey orders two statement indexes by input position.
type pairKey struct {
	a, b int
}

// DetectConflicts classifies every within-entity statement pair and returns
// one record per conflicting pair. Malformed statements are skipped; a
// defensive "no conflict" is always preferred to an error.
func (d *Detector) DetectConflicts(statements []types.DeonticStatement) []types.ConflictRecord {
	usable := make([]types.DeonticStatement, len(statements))
	indexByID := make(map[string]int, len(statements))
	groups := make(map[string][]int)

	for i, st := range statements {
		if st.ID == "" {
			st.ID = fmt.Sprintf("stmt_%d", i)
		}
		usable[i] = st
		if !st.Operator.Valid() || st.Proposition == "" {
			continue
		}
		indexByID[st.ID] = i
		entity := st.NormalizedEntity()
		groups[entity] = append(groups[entity], i)
	}

	candidates := d.contradictionPairs(usable, groups, indexByID)

	keys := make([]pairKey, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	records := make([]types.ConflictRecord, 0, len(keys))
	for _, k := range keys {
		records = append(records, d.classify(usable[k.a], usable[k.b]))
	}

	d.log.Debug("conflict detection complete",
		zap.Int("statements", len(statements)),
		zap.Int("entity_groups", len(groups)),
		zap.Int("conflicts", len(records)))
	return records
}

// contradictionPairs finds within-group pairs with contradictory modality
// and the same proposition, via the kernel when available.
func (d *Detector) contradictionPairs(statements []types.DeonticStatement, groups map[string][]int, indexByID map[string]int) map[pairKey]struct{} {
	if d.kernel != nil {
		if pairs, err := d.kernelPairs(statements, groups, indexByID); err == nil {
			return pairs
		} else {
			d.log.Warn("kernel derivation failed, falling back to decision table", zap.Error(err))
		}
	}
	return d.tablePairs(statements, groups)
}

// tablePairs is the pure Go decision table.
func (d *Detector) tablePairs(statements []types.DeonticStatement, groups map[string][]int) map[pairKey]struct{} {
	out := make(map[pairKey]struct{})
	for _, members := range groups {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				a, b := statements[members[x]], statements[members[y]]
				if types.OperatorsContradict(a.Operator, b.Operator) &&
					d.sim.Same(a.Proposition, b.Proposition) {
					out[pairKey{members[x], members[y]}] = struct{}{}
				}
			}
		}
	}
	return out
}

// kernelPairs asserts statement and same_prop facts, derives conflict_pair
// via Datalog, and maps the results back to input positions.
func (d *Detector) kernelPairs(statements []types.DeonticStatement, groups map[string][]int, indexByID map[string]int) (map[pairKey]struct{}, error) {
	d.kernel.Reset()

	for _, members := range groups {
		for _, i := range members {
			st := statements[i]
			if err := d.kernel.AddFact("statement", st.ID, st.NormalizedEntity(), modalityName(st.Operator), st.Proposition); err != nil {
				return nil, err
			}
		}
		// The Same heuristic stays in Go; the kernel consumes its verdicts
		// as facts, symmetric in both directions.
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				a, b := statements[members[x]], statements[members[y]]
				if d.sim.Same(a.Proposition, b.Proposition) {
					if err := d.kernel.AddFact("same_prop", a.ID, b.ID); err != nil {
						return nil, err
					}
					if err := d.kernel.AddFact("same_prop", b.ID, a.ID); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if err := d.kernel.Derive(); err != nil {
		return nil, err
	}
	rows, err := d.kernel.FactsFor("conflict_pair")
	if err != nil {
		return nil, err
	}

	out := make(map[pairKey]struct{}, len(rows))
	for _, row := range rows {
		idA, okA := row[0].(string)
		idB, okB := row[1].(string)
		if !okA || !okB {
			continue
		}
		i, okA := indexByID[idA]
		j, okB := indexByID[idB]
		if !okA || !okB {
			continue
		}
		if i > j {
			i, j = j, i
		}
		out[pairKey{i, j}] = struct{}{}
	}
	return out, nil
}

// modalityName maps an operator to its kernel name constant. RIGHT maps to
// permission semantics for derivation purposes but never contradicts,
// because the rules only mention obligation, permission and prohibition.
func modalityName(op types.DeonticOperator) string {
	switch op {
	case types.Obligation:
		return "/obligation"
	case types.Permission:
		return "/permission"
	case types.Prohibition:
		return "/prohibition"
	default:
		return "/right"
	}
}

// classify builds the single record for a contradictory pair, in precedence
// order: jurisdictional, conditional, then the plain operator conflict.
func (d *Detector) classify(a, b types.DeonticStatement) types.ConflictRecord {
	rec := types.ConflictRecord{
		ID:         types.ConflictID(a.ID, b.ID),
		StatementA: a,
		StatementB: b,
		Metadata: map[string]string{
			"entity":     a.NormalizedEntity(),
			"modality_a": string(a.Operator),
			"modality_b": string(b.Operator),
		},
	}

	switch {
	case a.SourceDocument != "" && b.SourceDocument != "" && a.SourceDocument != b.SourceDocument:
		rec.Type = types.ConflictJurisdictional
		rec.Severity = types.SeverityMedium
		rec.Explanation = fmt.Sprintf("%q and %q impose contradictory norms on %s regarding %q",
			a.SourceDocument, b.SourceDocument, a.Entity, a.Proposition)
		rec.Suggestions = []string{
			"determine which source document takes precedence",
			"apply choice-of-law analysis to resolve the cross-document contradiction",
			"check whether one source has been superseded or repealed",
		}
		rec.Metadata["source_a"] = a.SourceDocument
		rec.Metadata["source_b"] = b.SourceDocument

	case identicalConditions(a.Conditions, b.Conditions) &&
		isObligationProhibitionPair(a.Operator, b.Operator):
		rec.Type = types.ConflictConditional
		rec.Severity = types.SeverityMedium
		rec.Explanation = fmt.Sprintf("%s is both obliged and prohibited regarding %q under the same conditions",
			a.Entity, a.Proposition)
		rec.Suggestions = []string{
			"narrow the conditions so the obligation and prohibition cannot co-trigger",
			"add an explicit priority clause between the two norms",
		}

	case isObligationProhibitionPair(a.Operator, b.Operator):
		rec.Type = types.ConflictObligationProhibition
		rec.Severity = types.SeverityHigh
		rec.Explanation = fmt.Sprintf("%s is simultaneously obliged and prohibited regarding %q",
			a.Entity, a.Proposition)
		rec.Suggestions = []string{
			"check for codified exceptions to either norm",
			"determine whether one norm is lex specialis and overrides the other",
		}

	default:
		rec.Type = types.ConflictPermissionProhibition
		rec.Severity = types.SeverityHigh
		rec.Explanation = fmt.Sprintf("%s is permitted yet prohibited regarding %q",
			a.Entity, a.Proposition)
		rec.Suggestions = []string{
			"check for codified exceptions that carve the permission out of the prohibition",
			"confirm the permission has not been revoked by the later norm",
		}
	}
	return rec
}

func isObligationProhibitionPair(a, b types.DeonticOperator) bool {
	return (a == types.Obligation && b == types.Prohibition) ||
		(a == types.Prohibition && b == types.Obligation)
}

// identicalConditions reports non-empty, order-sensitive equality. Two
// unconditional norms are not a conditional conflict.
func identicalConditions(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
