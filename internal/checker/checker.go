package checker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"normlex/internal/conflict"
	"normlex/internal/logging"
	"normlex/internal/prover"
	"normlex/internal/store"
	"normlex/internal/types"
)

// Config tunes the per-document pipeline.
type Config struct {
	// MaxFormulasPerDocument caps extraction output; the overflow is
	// dropped with a warning issue.
	MaxFormulasPerDocument int `yaml:"max_formulas_per_document"`
	// ProofBound caps how many formulas the optional prover pass attempts.
	ProofBound int `yaml:"proof_bound"`
}

// DefaultConfig matches the documented pipeline bounds.
func DefaultConfig() Config {
	return Config{MaxFormulasPerDocument: 100, ProofBound: 10}
}

// Checker runs the full consistency pipeline for single documents. The
// checker itself is stateless between calls; TheoremStore is the only
// shared state it touches.
type Checker struct {
	log        *zap.Logger
	cfg        Config
	extractor  Extractor
	store      *store.Store
	sim        conflict.Similarity
	detector   *conflict.Detector
	prover     *prover.Engine
	proverName string
}

// Option customizes a Checker.
type Option func(*Checker)

// WithExtractor replaces the default regex extractor.
func WithExtractor(ex Extractor) Option {
	return func(c *Checker) { c.extractor = ex }
}

// WithProver enables the formal verification pass using the named backend.
func WithProver(e *prover.Engine, name string) Option {
	return func(c *Checker) {
		c.prover = e
		c.proverName = name
	}
}

// WithSimilarity overrides the proposition similarity heuristic.
func WithSimilarity(sim conflict.Similarity) Option {
	return func(c *Checker) { c.sim = sim }
}

// NewChecker builds a checker over the given store. Without options it uses
// the regex extractor and no prover.
func NewChecker(st *store.Store, cfg Config, opts ...Option) *Checker {
	def := DefaultConfig()
	if cfg.MaxFormulasPerDocument <= 0 {
		cfg.MaxFormulasPerDocument = def.MaxFormulasPerDocument
	}
	if cfg.ProofBound <= 0 {
		cfg.ProofBound = def.ProofBound
	}
	c := &Checker{
		log:       logging.Named(logging.CategoryChecker),
		cfg:       cfg,
		extractor: NewRegexExtractor(),
		store:     st,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.detector = conflict.NewDetector(c.sim)
	return c
}

// CheckDocument runs extract, retrieve-and-detect, optional proof, and
// aggregation for one document. It always returns an analysis; pipeline
// failures degrade into low-confidence results with explanatory issues
// rather than errors.
func (c *Checker) CheckDocument(ctx context.Context, text, docID string, q store.ConsistencyQuery) (analysis types.DocumentAnalysis) {
	started := time.Now()
	analysis = types.DocumentAnalysis{
		DocumentID:      docID,
		Formulas:        []types.DeonticFormula{},
		Issues:          []types.Issue{},
		Recommendations: []string{},
	}
	defer func() { analysis.ProcessingTime = time.Since(started) }()

	// Phase 1: extraction.
	formulas, err := c.extractor.ExtractFormulas(ctx, text)
	if err != nil {
		analysis.Issues = append(analysis.Issues, types.Issue{
			Type:       "extraction_failed",
			Severity:   types.SeverityHigh,
			Category:   types.CategoryExtraction,
			Message:    fmt.Sprintf("formula extraction failed: %v", err),
			Suggestion: "verify the document text is well-formed prose",
		})
		analysis.ConfidenceScore = 0
		analysis.Recommendations = append(analysis.Recommendations, "document could not be analyzed; review the input text")
		return analysis
	}
	if len(formulas) == 0 {
		analysis.Issues = append(analysis.Issues, types.Issue{
			Type:       "no_formulas_extracted",
			Severity:   types.SeverityMedium,
			Category:   types.CategoryExtraction,
			Message:    "no deontic statements found in document",
			Suggestion: "confirm the document contains normative language (shall, must, may, shall not)",
		})
		analysis.ConfidenceScore = 0.2
		analysis.Recommendations = append(analysis.Recommendations, "no normative content detected")
		return analysis
	}
	if len(formulas) > c.cfg.MaxFormulasPerDocument {
		analysis.Issues = append(analysis.Issues, types.Issue{
			Type:     "formulas_truncated",
			Severity: types.SeverityLow,
			Category: types.CategoryProcessing,
			Message: fmt.Sprintf("document yielded %d formulas; analyzing the first %d",
				len(formulas), c.cfg.MaxFormulasPerDocument),
			Suggestion: "split the document into smaller sections for full coverage",
		})
		formulas = formulas[:c.cfg.MaxFormulasPerDocument]
	}
	analysis.Formulas = formulas

	// Phase 2: retrieval and conflict detection against the corpus.
	consistency, err := c.store.CheckDocumentConsistency(ctx, formulas, q, c.sim)
	if err != nil {
		analysis.Issues = append(analysis.Issues, types.Issue{
			Type:       "consistency_check_failed",
			Severity:   types.SeverityHigh,
			Category:   types.CategoryProcessing,
			Message:    fmt.Sprintf("corpus consistency check failed: %v", err),
			Suggestion: "retry once the theorem store is reachable",
		})
		analysis.ConfidenceScore = 0.2
		analysis.Recommendations = append(analysis.Recommendations, "consistency could not be established against the corpus")
		return analysis
	}
	// The corpus check only sees document-vs-theorem contradictions; the
	// detector covers the document contradicting itself.
	if intra := c.detector.DetectConflicts(statementsFor(docID, formulas)); len(intra) > 0 {
		consistency.Conflicts = append(consistency.Conflicts, intra...)
		consistency.IsConsistent = false
		consistency.ConfidenceScore = types.Clamp01(consistency.ConfidenceScore - 0.3*float64(len(intra)))
	}
	analysis.Consistency = consistency

	// Phase 3: optional formal verification, bounded.
	if c.prover != nil {
		bound := c.cfg.ProofBound
		if bound > len(formulas) {
			bound = len(formulas)
		}
		for _, f := range formulas[:bound] {
			analysis.ProofResults = append(analysis.ProofResults, c.prover.ProveDeonticFormula(ctx, f, c.proverName))
		}
	}

	// Phase 4: aggregation.
	c.synthesizeIssues(&analysis)
	analysis.Recommendations = recommendations(analysis)
	analysis.ConfidenceScore = c.chainConfidence(analysis)

	c.log.Debug("document checked",
		zap.String("document_id", docID),
		zap.Int("formulas", len(analysis.Formulas)),
		zap.Int("conflicts", len(analysis.Consistency.Conflicts)),
		zap.Int("issues", len(analysis.Issues)),
		zap.Float64("confidence", analysis.ConfidenceScore))
	return analysis
}

// statementsFor converts extracted formulas into detector statements with
// deterministic per-document ids.
func statementsFor(docID string, formulas []types.DeonticFormula) []types.DeonticStatement {
	statements := make([]types.DeonticStatement, len(formulas))
	for i, f := range formulas {
		statements[i] = types.DeonticStatement{
			ID:             fmt.Sprintf("%s_stmt_%d", docID, i),
			Entity:         f.Agent,
			Operator:       f.Operator,
			Proposition:    f.Proposition,
			Conditions:     f.Conditions,
			SourceDocument: docID,
		}
	}
	return statements
}

// Document is one input to BatchCheckDocuments.
type Document struct {
	ID   string
	Text string
}

// BatchCheckDocuments checks documents sequentially with per-document
// isolation: one document's poor outcome never blocks the rest.
func (c *Checker) BatchCheckDocuments(ctx context.Context, docs []Document, q store.ConsistencyQuery) []types.DocumentAnalysis {
	analyses := make([]types.DocumentAnalysis, 0, len(docs))
	for _, doc := range docs {
		analyses = append(analyses, c.CheckDocument(ctx, doc.Text, doc.ID, q))
	}
	return analyses
}

// synthesizeIssues converts conflicts, temporal conflicts and proof
// failures into categorized issues.
func (c *Checker) synthesizeIssues(a *types.DocumentAnalysis) {
	for _, conf := range a.Consistency.Conflicts {
		suggestion := ""
		if len(conf.Suggestions) > 0 {
			suggestion = conf.Suggestions[0]
		}
		a.Issues = append(a.Issues, types.Issue{
			Type:       string(conf.Type),
			Severity:   conf.Severity,
			Category:   types.CategoryConflict,
			Message:    conf.Explanation,
			Suggestion: suggestion,
		})
	}
	for _, tc := range a.Consistency.TemporalConflicts {
		a.Issues = append(a.Issues, types.Issue{
			Type:       "temporal_scope_mismatch",
			Severity:   types.SeverityMedium,
			Category:   types.CategoryTemporal,
			Message:    tc.Explanation,
			Suggestion: "confirm which norm was in force at the relevant time",
		})
	}
	for _, pr := range a.ProofResults {
		switch pr.Status {
		case types.ProofFailure:
			a.Issues = append(a.Issues, types.Issue{
				Type:       "proof_failed",
				Severity:   types.SeverityMedium,
				Category:   types.CategoryProof,
				Message:    fmt.Sprintf("%s could not prove %q", pr.Prover, pr.Statement),
				Suggestion: "inspect the formula encoding for this statement",
			})
		case types.ProofError, types.ProofTimeout:
			a.Issues = append(a.Issues, types.Issue{
				Type:       "proof_" + string(pr.Status),
				Severity:   types.SeverityLow,
				Category:   types.CategoryProof,
				Message:    fmt.Sprintf("%s did not complete on %q: %v", pr.Prover, pr.Statement, pr.Errors),
				Suggestion: "retry with a longer proof timeout",
			})
		}
	}
}

// recommendations derives conflict-type-specific advice, falling back to a
// clean-bill default.
func recommendations(a types.DocumentAnalysis) []string {
	seen := make(map[types.ConflictType]struct{})
	var recs []string
	for _, conf := range a.Consistency.Conflicts {
		if _, ok := seen[conf.Type]; ok {
			continue
		}
		seen[conf.Type] = struct{}{}
		switch conf.Type {
		case types.ConflictObligationProhibition:
			recs = append(recs, "resolve obligation/prohibition contradictions before relying on this document")
		case types.ConflictPermissionProhibition:
			recs = append(recs, "reconcile permissions that prohibitions in the corpus revoke")
		case types.ConflictConditional:
			recs = append(recs, "disambiguate the shared trigger conditions of conflicting norms")
		case types.ConflictJurisdictional:
			recs = append(recs, "run a choice-of-law analysis for cross-document contradictions")
		}
	}
	if len(a.Consistency.TemporalConflicts) > 0 {
		recs = append(recs, "verify the effective dates of every cited norm")
	}
	if len(recs) == 0 {
		recs = append(recs, "no major conflicts detected; document appears consistent with the corpus")
	}
	return recs
}

// chainConfidence combines the retrieval confidence with the proof success
// ratio, then applies flat per-severity penalties.
func (c *Checker) chainConfidence(a types.DocumentAnalysis) float64 {
	confidence := a.Consistency.ConfidenceScore

	attempts, successes := 0, 0
	for _, pr := range a.ProofResults {
		if pr.Status == types.ProofUnsupported {
			continue
		}
		attempts++
		if pr.Status == types.ProofSuccess || pr.Status == types.ProofSatisfiable {
			successes++
		}
	}
	if attempts > 0 {
		confidence *= float64(successes) / float64(attempts)
	}

	for _, issue := range a.Issues {
		switch issue.Severity {
		case types.SeverityHigh:
			confidence -= 0.1
		case types.SeverityMedium:
			confidence -= 0.05
		}
	}
	return types.Clamp01(confidence)
}
