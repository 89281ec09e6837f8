package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"normlex/internal/conflict"
	"normlex/internal/types"
)

// ConsistencyQuery scopes a document consistency check.
type ConsistencyQuery struct {
	TemporalContext *time.Time
	Jurisdiction    string
	Domain          string
}

// CheckDocumentConsistency checks a document's formulas against the corpus.
// Retrieval uses the jurisdiction and domain filters only; the temporal
// context is deliberately not used as a retrieval filter so that theorems
// whose scope excludes the query time still surface as temporal conflicts.
//
// sim may be nil, in which case the default token heuristic applies.
func (s *Store) CheckDocumentConsistency(ctx context.Context, formulas []types.DeonticFormula, q ConsistencyQuery, sim conflict.Similarity) (types.ConsistencyResult, error) {
	if sim == nil {
		sim = conflict.DefaultSimilarity()
	}

	result := types.ConsistencyResult{
		IsConsistent:      true,
		Conflicts:         []types.ConflictRecord{},
		RelevantTheorems:  []types.TheoremRecord{},
		TemporalConflicts: []types.TemporalConflict{},
	}

	seen := make(map[string]struct{})
	var strengthSum float64

	for i, formula := range formulas {
		retrieved, err := s.RetrieveRelevant(ctx, formula, Query{
			Jurisdiction: q.Jurisdiction,
			Domain:       q.Domain,
			TopK:         s.cfg.ConsistencyTopK,
		})
		if err != nil {
			return result, fmt.Errorf("retrieve relevant theorems: %w", err)
		}

		docID := fmt.Sprintf("doc_%d", i)
		for _, rec := range retrieved {
			if _, ok := seen[rec.TheoremID]; !ok {
				seen[rec.TheoremID] = struct{}{}
				result.RelevantTheorems = append(result.RelevantTheorems, rec)
				strengthSum += rec.PrecedentStrength
			}

			if types.OperatorsContradict(formula.Operator, rec.Formula.Operator) &&
				sim.Same(formula.Proposition, rec.Formula.Proposition) {
				result.Conflicts = append(result.Conflicts, precedentConflict(docID, formula, rec))
			}

			if q.TemporalContext != nil &&
				!rec.TemporalScope.Contains(*q.TemporalContext) &&
				sim.Related(formula.Proposition, rec.Formula.Proposition) {
				result.TemporalConflicts = append(result.TemporalConflicts, types.TemporalConflict{
					TheoremID:   rec.TheoremID,
					Proposition: rec.Formula.Proposition,
					QueryTime:   *q.TemporalContext,
					Explanation: fmt.Sprintf("theorem %s is not in force at %s", rec.TheoremID, q.TemporalContext.Format("2006-01-02")),
				})
			}
		}
	}

	result.IsConsistent = len(result.Conflicts) == 0

	confidence := 1.0 - 0.3*float64(len(result.Conflicts)) - 0.2*float64(len(result.TemporalConflicts))
	if len(result.RelevantTheorems) > 0 {
		confidence += 0.1 * (strengthSum / float64(len(result.RelevantTheorems)))
	}
	result.ConfidenceScore = types.Clamp01(confidence)
	result.Reasoning = consistencyReasoning(len(formulas), result)

	s.log.Debug("document consistency checked",
		zap.Int("formulas", len(formulas)),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("temporal_conflicts", len(result.TemporalConflicts)),
		zap.Float64("confidence", result.ConfidenceScore))
	return result, nil
}

func precedentConflict(docID string, formula types.DeonticFormula, rec types.TheoremRecord) types.ConflictRecord {
	ctype := types.ConflictObligationProhibition
	if formula.Operator == types.Permission || rec.Formula.Operator == types.Permission {
		ctype = types.ConflictPermissionProhibition
	}

	return types.ConflictRecord{
		ID:       types.ConflictID(docID, rec.TheoremID),
		Type:     ctype,
		Severity: types.SeverityHigh,
		StatementA: types.DeonticStatement{
			ID:          docID,
			Entity:      formula.Agent,
			Operator:    formula.Operator,
			Proposition: formula.Proposition,
			Conditions:  formula.Conditions,
		},
		StatementB: types.DeonticStatement{
			ID:             rec.TheoremID,
			Entity:         rec.Formula.Agent,
			Operator:       rec.Formula.Operator,
			Proposition:    rec.Formula.Proposition,
			Conditions:     rec.Formula.Conditions,
			SourceDocument: rec.SourceCase,
		},
		Explanation: fmt.Sprintf("document asserts %s(%s) but precedent %s holds %s(%s)",
			formula.Operator, formula.Proposition, rec.TheoremID, rec.Formula.Operator, rec.Formula.Proposition),
		Suggestions: []string{
			"check for codified exceptions narrowing the precedent",
			"verify the precedent still binds in this jurisdiction",
		},
		Metadata: map[string]string{
			"theorem_id":         rec.TheoremID,
			"precedent_strength": fmt.Sprintf("%.2f", rec.PrecedentStrength),
		},
	}
}

func consistencyReasoning(formulaCount int, r types.ConsistencyResult) string {
	if r.IsConsistent && len(r.TemporalConflicts) == 0 {
		return fmt.Sprintf("checked %d formulas against %d relevant theorems; no conflicts found",
			formulaCount, len(r.RelevantTheorems))
	}
	return fmt.Sprintf("checked %d formulas against %d relevant theorems; found %d conflicts and %d temporal conflicts",
		formulaCount, len(r.RelevantTheorems), len(r.Conflicts), len(r.TemporalConflicts))
}
