package types

import (
	"fmt"
	"time"
)

// ConflictType classifies how two deontic statements contradict each other.
type ConflictType string

const (
	ConflictObligationProhibition ConflictType = "OBLIGATION_PROHIBITION"
	ConflictPermissionProhibition ConflictType = "PERMISSION_PROHIBITION"
	ConflictConditional           ConflictType = "CONDITIONAL_CONFLICT"
	ConflictJurisdictional        ConflictType = "JURISDICTIONAL"
)

// Severity of a conflict or issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ConflictRecord describes one detected conflict between two statements.
// Created by the conflict detector, read-only downstream.
type ConflictRecord struct {
	ID          string            `json:"id"`
	Type        ConflictType      `json:"type"`
	Severity    Severity          `json:"severity"`
	StatementA  DeonticStatement  `json:"statement_a"`
	StatementB  DeonticStatement  `json:"statement_b"`
	Explanation string            `json:"explanation"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ConflictID derives the deterministic id for an ordered statement pair.
func ConflictID(idA, idB string) string {
	return fmt.Sprintf("conflict_%s_%s", idA, idB)
}

// ProofStatus is the outcome classification of one proof attempt.
type ProofStatus string

const (
	ProofSuccess     ProofStatus = "SUCCESS"
	ProofFailure     ProofStatus = "FAILURE"
	ProofSatisfiable ProofStatus = "SATISFIABLE"
	ProofTimeout     ProofStatus = "TIMEOUT"
	ProofUnsupported ProofStatus = "UNSUPPORTED"
	ProofError       ProofStatus = "ERROR"
)

// ProofResult is produced exactly once per proof attempt, regardless of
// outcome.
type ProofResult struct {
	Prover    string            `json:"prover"`
	Statement string            `json:"statement"`
	Status    ProofStatus       `json:"status"`
	Proof     string            `json:"proof,omitempty"`
	Elapsed   time.Duration     `json:"elapsed"`
	Errors    []string          `json:"errors,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TemporalConflict records a document formula whose temporal context falls
// outside a retrieved theorem's validity scope.
type TemporalConflict struct {
	TheoremID   string    `json:"theorem_id"`
	Proposition string    `json:"proposition"`
	QueryTime   time.Time `json:"query_time"`
	Explanation string    `json:"explanation"`
}

// ConsistencyResult is the outcome of checking a document's formulas against
// the theorem corpus.
type ConsistencyResult struct {
	IsConsistent      bool               `json:"is_consistent"`
	Conflicts         []ConflictRecord   `json:"conflicts"`
	RelevantTheorems  []TheoremRecord    `json:"relevant_theorems"`
	ConfidenceScore   float64            `json:"confidence_score"`
	Reasoning         string             `json:"reasoning"`
	TemporalConflicts []TemporalConflict `json:"temporal_conflicts"`
}

// IssueCategory groups issues for reporting.
type IssueCategory string

const (
	CategoryExtraction IssueCategory = "extraction"
	CategoryConflict   IssueCategory = "logical_conflict"
	CategoryTemporal   IssueCategory = "temporal_conflict"
	CategoryProof      IssueCategory = "formal_verification"
	CategoryProcessing IssueCategory = "processing"
)

// Issue is one tagged finding inside a document analysis.
type Issue struct {
	Type       string        `json:"type"`
	Severity   Severity      `json:"severity"`
	Category   IssueCategory `json:"category"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// DocumentAnalysis is the full result of checking one document. Stateless
// beyond the call that produced it; the caller owns persistence.
type DocumentAnalysis struct {
	DocumentID      string            `json:"document_id"`
	Formulas        []DeonticFormula  `json:"formulas"`
	Consistency     ConsistencyResult `json:"consistency"`
	ProofResults    []ProofResult     `json:"proof_results,omitempty"`
	ConfidenceScore float64           `json:"confidence_score"`
	Issues          []Issue           `json:"issues"`
	Recommendations []string          `json:"recommendations"`
	ProcessingTime  time.Duration     `json:"processing_time"`
}

// DebugReport buckets analysis issues by severity, compiler style.
type DebugReport struct {
	CriticalErrors []Issue  `json:"critical_errors"`
	Warnings       []Issue  `json:"warnings"`
	Suggestions    []Issue  `json:"suggestions"`
	Summary        string   `json:"summary"`
	FixSuggestions []string `json:"fix_suggestions"`
}

// CorpusDocument is the read-only filesystem input record consumed by the
// bulk processor.
type CorpusDocument struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Text              string    `json:"text"`
	Date              time.Time `json:"date"`
	Jurisdiction      string    `json:"jurisdiction,omitempty"`
	Court             string    `json:"court,omitempty"`
	Citation          string    `json:"citation,omitempty"`
	LegalDomains      []string  `json:"legal_domains,omitempty"`
	PrecedentStrength *float64  `json:"precedent_strength,omitempty"`
}

// Strength returns the document's precedent strength, defaulting to fully
// authoritative when the field is absent. An explicit zero stays zero.
func (d CorpusDocument) Strength() float64 {
	if d.PrecedentStrength == nil {
		return 1.0
	}
	return *d.PrecedentStrength
}
