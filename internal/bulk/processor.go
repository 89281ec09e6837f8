package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"normlex/internal/checker"
	"normlex/internal/logging"
	"normlex/internal/store"
	"normlex/internal/types"
)

// Config tunes a bulk run.
type Config struct {
	Workers       int          `yaml:"workers"`
	Parallel      bool         `yaml:"parallel"`
	ProgressEvery int          `yaml:"progress_every"`
	Validate      bool         `yaml:"validate"`
	Filters       FilterConfig `yaml:"filters"`
}

// DefaultConfig runs sequentially with progress logged every 10 documents.
func DefaultConfig() Config {
	return Config{Workers: 4, ProgressEvery: 10}
}

// Stats summarizes one bulk run. Document-level counters except
// TheoremsAdded, which counts store insertions.
type Stats struct {
	RunID               string        `json:"run_id"`
	Discovered          int           `json:"discovered"`
	Processed           int           `json:"processed"`
	Skipped             int           `json:"skipped"`
	Failed              int           `json:"failed"`
	TheoremsAdded       int           `json:"theorems_added"`
	ValidationConflicts int           `json:"validation_conflicts"`
	SuccessRate         float64       `json:"success_rate"`
	Elapsed             time.Duration `json:"elapsed"`
}

// Processor drives corpus ingestion. Writes to the store always happen from
// the calling goroutine: parallel extraction gathers first, then appends
// serially.
type Processor struct {
	log       *zap.Logger
	cfg       Config
	filters   []Filter
	store     *store.Store
	extractor checker.Extractor
	checker   *checker.Checker
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithExtractor replaces the default regex extractor.
func WithExtractor(ex checker.Extractor) ProcessorOption {
	return func(p *Processor) { p.extractor = ex }
}

// WithValidator supplies the checker used by the post-ingest validation
// pass. Without it, Validate is a no-op.
func WithValidator(c *checker.Checker) ProcessorOption {
	return func(p *Processor) { p.checker = c }
}

// NewProcessor builds a processor over the given store.
func NewProcessor(st *store.Store, cfg Config, opts ...ProcessorOption) *Processor {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}
	p := &Processor{
		log:       logging.Named(logging.CategoryBulk),
		cfg:       cfg,
		filters:   BuildFilters(cfg.Filters),
		store:     st,
		extractor: checker.NewRegexExtractor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDirectory discovers JSON corpus documents under dir and ingests
// them. Files holding either a single document or an array are accepted.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) (Stats, error) {
	docs, failed, err := p.discover(dir)
	if err != nil {
		return Stats{}, err
	}
	stats, err := p.ProcessDocuments(ctx, docs)
	stats.Failed += failed
	return stats, err
}

// discover walks dir collecting corpus documents from .json files in
// deterministic path order. Undecodable files count as failures, not
// errors.
func (p *Processor) discover(dir string) ([]types.CorpusDocument, int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk corpus dir %s: %w", dir, err)
	}
	sort.Strings(paths)

	var docs []types.CorpusDocument
	failed := 0
	for _, path := range paths {
		loaded, err := loadDocuments(path)
		if err != nil {
			failed++
			p.log.Warn("skipping undecodable corpus file", zap.String("path", path), zap.Error(err))
			continue
		}
		docs = append(docs, loaded...)
	}
	return docs, failed, nil
}

func loadDocuments(path string) ([]types.CorpusDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var many []types.CorpusDocument
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one types.CorpusDocument
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []types.CorpusDocument{one}, nil
}

// ProcessDocuments filters and ingests an in-memory document set, then runs
// the optional validation pass.
func (p *Processor) ProcessDocuments(ctx context.Context, docs []types.CorpusDocument) (Stats, error) {
	started := time.Now()
	stats := Stats{RunID: uuid.NewString(), Discovered: len(docs)}

	kept := make([]types.CorpusDocument, 0, len(docs))
	for _, doc := range docs {
		ok, filterName := applyFilters(p.filters, doc)
		if !ok {
			stats.Skipped++
			p.log.Debug("document filtered out",
				zap.String("document_id", doc.ID),
				zap.String("filter", filterName))
			continue
		}
		kept = append(kept, doc)
	}

	var extracted []extractionResult
	if p.cfg.Parallel {
		extracted = p.extractParallel(kept)
	} else {
		extracted = p.extractSequential(ctx, kept)
	}

	// Single writer lane: the store's indexes see one mutator.
	for _, res := range extracted {
		if res.err != nil {
			stats.Failed++
			p.log.Warn("extraction failed",
				zap.String("document_id", res.doc.ID),
				zap.Error(res.err))
			continue
		}
		stats.Processed++
		for _, f := range res.formulas {
			if _, err := p.store.AddTheorem(ctx, f, scopeFor(res.doc), metaFor(res.doc)); err != nil {
				p.log.Warn("theorem rejected",
					zap.String("document_id", res.doc.ID),
					zap.Error(err))
				continue
			}
			stats.TheoremsAdded++
		}
	}

	if p.cfg.Validate && p.checker != nil {
		stats.ValidationConflicts = p.validate(ctx, extracted)
	}

	if total := stats.Processed + stats.Failed; total > 0 {
		stats.SuccessRate = float64(stats.Processed) / float64(total)
	}
	stats.Elapsed = time.Since(started)

	p.log.Info("bulk run complete",
		zap.String("run_id", stats.RunID),
		zap.Int("discovered", stats.Discovered),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("theorems_added", stats.TheoremsAdded),
		zap.Float64("success_rate", stats.SuccessRate))
	return stats, nil
}

// extractionResult pairs a document with its extracted formulas. Implements
// Result for the pool.
type extractionResult struct {
	doc      types.CorpusDocument
	formulas []types.DeonticFormula
	err      error
}

func (r extractionResult) Err() error { return r.err }

type extractionJob struct {
	doc       types.CorpusDocument
	extractor checker.Extractor
}

func (j extractionJob) Execute(ctx context.Context) Result {
	formulas, err := j.extractor.ExtractFormulas(ctx, j.doc.Text)
	return extractionResult{doc: j.doc, formulas: formulas, err: err}
}

func (p *Processor) extractSequential(ctx context.Context, docs []types.CorpusDocument) []extractionResult {
	results := make([]extractionResult, 0, len(docs))
	for i, doc := range docs {
		formulas, err := p.extractor.ExtractFormulas(ctx, doc.Text)
		results = append(results, extractionResult{doc: doc, formulas: formulas, err: err})
		if (i+1)%p.cfg.ProgressEvery == 0 {
			p.log.Info("extraction progress", zap.Int("done", i+1), zap.Int("total", len(docs)))
		}
	}
	return results
}

func (p *Processor) extractParallel(docs []types.CorpusDocument) []extractionResult {
	pool := NewPool(p.cfg.Workers, len(docs))
	pool.Start()
	for _, doc := range docs {
		pool.Submit(extractionJob{doc: doc, extractor: p.extractor})
	}

	raw := pool.Wait()
	results := make([]extractionResult, 0, len(raw))
	for _, r := range raw {
		results = append(results, r.(extractionResult))
	}
	// Pool completion order is nondeterministic; restore document order so
	// store insertion ranks stay stable across runs.
	index := make(map[string]int, len(docs))
	for i, doc := range docs {
		index[doc.ID] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		return index[results[i].doc.ID] < index[results[j].doc.ID]
	})
	return results
}

// validate re-checks each ingested document against the now-complete store,
// surfacing internal corpus contradictions. Failures are logged, never
// fatal.
func (p *Processor) validate(ctx context.Context, extracted []extractionResult) int {
	conflicts := 0
	for _, res := range extracted {
		if res.err != nil || len(res.formulas) == 0 {
			continue
		}
		analysis := p.checker.CheckDocument(ctx, res.doc.Text, res.doc.ID, store.ConsistencyQuery{
			Jurisdiction: res.doc.Jurisdiction,
		})
		if !analysis.Consistency.IsConsistent {
			conflicts += len(analysis.Consistency.Conflicts)
			p.log.Warn("corpus self-validation found conflicts",
				zap.String("document_id", res.doc.ID),
				zap.Int("conflicts", len(analysis.Consistency.Conflicts)))
		}
	}
	return conflicts
}

func scopeFor(doc types.CorpusDocument) types.TemporalScope {
	if doc.Date.IsZero() {
		return types.TemporalScope{}
	}
	start := doc.Date
	return types.TemporalScope{Start: &start}
}

func metaFor(doc types.CorpusDocument) store.Meta {
	meta := store.Meta{
		Jurisdiction:      doc.Jurisdiction,
		SourceCase:        doc.Citation,
		PrecedentStrength: doc.PrecedentStrength,
	}
	if meta.SourceCase == "" {
		meta.SourceCase = doc.ID
	}
	if len(doc.LegalDomains) > 0 {
		meta.LegalDomain = doc.LegalDomains[0]
	}
	return meta
}
