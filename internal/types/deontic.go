// Package types defines the shared data model for the normlex consistency
// kernel: deontic formulas, theorem records, conflicts, proof results, and
// the per-document analysis types consumed by callers.
package types

import (
	"fmt"
	"strings"
	"time"
)

// DeonticOperator is the modality of a deontic formula.
type DeonticOperator string

const (
	Obligation  DeonticOperator = "OBLIGATION"
	Permission  DeonticOperator = "PERMISSION"
	Prohibition DeonticOperator = "PROHIBITION"
	Right       DeonticOperator = "RIGHT"
)

// Valid reports whether the operator is one of the four known modalities.
func (op DeonticOperator) Valid() bool {
	switch op {
	case Obligation, Permission, Prohibition, Right:
		return true
	}
	return false
}

// OperatorsContradict reports whether two modalities are mutually
// inconsistent when applied to the same action: an obligation or permission
// against a prohibition, in either direction. Obligation vs permission is
// never a contradiction, and RIGHT never contradicts on modality alone.
func OperatorsContradict(a, b DeonticOperator) bool {
	switch {
	case a == Obligation && b == Prohibition, a == Prohibition && b == Obligation:
		return true
	case a == Permission && b == Prohibition, a == Prohibition && b == Permission:
		return true
	}
	return false
}

// DeonticFormula is a single normative statement. Immutable once created.
type DeonticFormula struct {
	Operator           DeonticOperator `json:"operator"`
	Proposition        string          `json:"proposition"`
	Agent              string          `json:"agent"`
	Confidence         float64         `json:"confidence"`
	SourceText         string          `json:"source_text,omitempty"`
	Conditions         []string        `json:"conditions,omitempty"`
	TemporalConditions []string        `json:"temporal_conditions,omitempty"`
}

// NewDeonticFormula builds a formula with the confidence clamped to [0,1].
func NewDeonticFormula(op DeonticOperator, proposition, agent string, confidence float64) (DeonticFormula, error) {
	if !op.Valid() {
		return DeonticFormula{}, fmt.Errorf("unknown deontic operator %q", op)
	}
	if strings.TrimSpace(proposition) == "" {
		return DeonticFormula{}, fmt.Errorf("proposition must be non-empty")
	}
	return DeonticFormula{
		Operator:    op,
		Proposition: proposition,
		Agent:       agent,
		Confidence:  Clamp01(confidence),
	}, nil
}

// CanonicalText renders the formula in a stable textual form. Used as the
// embedding input and as part of proof cache keys, so it must be
// deterministic for identical formulas.
func (f DeonticFormula) CanonicalText() string {
	var b strings.Builder
	b.WriteString(string(f.Operator))
	b.WriteByte('(')
	b.WriteString(strings.TrimSpace(f.Agent))
	b.WriteString(", ")
	b.WriteString(strings.TrimSpace(f.Proposition))
	b.WriteByte(')')
	if len(f.Conditions) > 0 {
		b.WriteString(" if [")
		b.WriteString(strings.Join(f.Conditions, "; "))
		b.WriteByte(']')
	}
	return b.String()
}

// TemporalScope is a possibly open-ended validity interval. A nil bound
// means unbounded on that side.
type TemporalScope struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// NewTemporalScope validates that start <= end when both bounds are present.
func NewTemporalScope(start, end *time.Time) (TemporalScope, error) {
	if start != nil && end != nil && end.Before(*start) {
		return TemporalScope{}, fmt.Errorf("temporal scope start %s after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TemporalScope{Start: start, End: end}, nil
}

// Unbounded reports whether the scope has no bounds at all.
func (s TemporalScope) Unbounded() bool {
	return s.Start == nil && s.End == nil
}

// Contains reports whether t falls within the scope. Open ends always match
// on their side.
func (s TemporalScope) Contains(t time.Time) bool {
	if s.Start != nil && t.Before(*s.Start) {
		return false
	}
	if s.End != nil && t.After(*s.End) {
		return false
	}
	return true
}

// MonthBuckets returns the YYYY-MM index keys the scope touches, capped to
// maxMonths buckets from the start. An unbounded scope returns nil, meaning
// it lives in the catch-all bucket.
func (s TemporalScope) MonthBuckets(maxMonths int) []string {
	if s.Start == nil || s.End == nil {
		return nil
	}
	var buckets []string
	cur := time.Date(s.Start.Year(), s.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(s.End.Year(), s.End.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) && len(buckets) < maxMonths {
		buckets = append(buckets, cur.Format("2006-01"))
		cur = cur.AddDate(0, 1, 0)
	}
	return buckets
}

// TheoremRecord is a deontic formula plus its applicability scope and
// provenance. Owned exclusively by the theorem store; never mutated after
// creation.
type TheoremRecord struct {
	TheoremID         string         `json:"theorem_id"`
	Formula           DeonticFormula `json:"formula"`
	Embedding         []float32      `json:"embedding,omitempty"`
	TemporalScope     TemporalScope  `json:"temporal_scope"`
	Jurisdiction      string         `json:"jurisdiction,omitempty"`
	LegalDomain       string         `json:"legal_domain,omitempty"`
	SourceCase        string         `json:"source_case,omitempty"`
	PrecedentStrength float64        `json:"precedent_strength"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DeonticStatement is the unit of conflict detection: a formula attributed
// to an entity, carrying its originating document for jurisdictional checks.
type DeonticStatement struct {
	ID             string          `json:"id"`
	Entity         string          `json:"entity"`
	Operator       DeonticOperator `json:"operator"`
	Proposition    string          `json:"proposition"`
	Conditions     []string        `json:"conditions,omitempty"`
	SourceDocument string          `json:"source_document,omitempty"`
}

// NormalizedEntity lowercases and collapses whitespace so "The Tenant" and
// "the  tenant" group together.
func (s DeonticStatement) NormalizedEntity() string {
	return strings.Join(strings.Fields(strings.ToLower(s.Entity)), " ")
}

// Clamp01 clamps v to [0, 1]. Confidence and strength fields are always
// stored clamped.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
