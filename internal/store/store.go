// Package store implements the content-addressed theorem corpus with
// temporal, jurisdiction and domain indexes and similarity-based retrieval.
// The store is the only long-lived shared state in the kernel: records are
// created by AddTheorem, never mutated, and guarded by a single RWMutex so
// the embedding application can rely on single-writer/many-reader
// discipline.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"normlex/internal/embedding"
	"normlex/internal/logging"
	"normlex/internal/types"
)

// maxIndexedMonths caps the month-bucket fan-out of one theorem's scope.
// Scopes longer than ten years are indexed as open-ended.
const maxIndexedMonths = 120

// unboundedBucket is the catch-all temporal index key for scopes without
// full bounds.
const unboundedBucket = ""

// Config holds store configuration.
type Config struct {
	// Path of the sqlite snapshot. Empty means memory-only.
	Path string `json:"path" yaml:"path"`

	// DefaultTopK bounds retrieval when the caller passes no limit.
	DefaultTopK int `json:"default_top_k" yaml:"default_top_k"`

	// ConsistencyTopK bounds per-formula retrieval during document
	// consistency checks.
	ConsistencyTopK int `json:"consistency_top_k" yaml:"consistency_top_k"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:     10,
		ConsistencyTopK: 20,
	}
}

// Meta carries the optional provenance fields of a theorem. A nil
// PrecedentStrength means the default of 1.0; the pointer keeps an explicit
// zero distinct from absent.
type Meta struct {
	Jurisdiction      string
	LegalDomain       string
	SourceCase        string
	PrecedentStrength *float64
}

// Store is the theorem corpus.
type Store struct {
	mu     sync.RWMutex
	cfg    Config
	log    *zap.Logger
	engine embedding.Engine

	records map[string]types.TheoremRecord
	order   map[string]int // theorem id -> insertion rank, for stable ties
	next    int

	temporalIdx     map[string]map[string]struct{}
	jurisdictionIdx map[string]map[string]struct{}
	domainIdx       map[string]map[string]struct{}

	db *sql.DB
}

// New creates a theorem store. engine may be nil, in which case the
// deterministic hash fallback keeps similarity math defined (degraded
// retrieval, not an error). When cfg.Path is set the sqlite snapshot is
// opened and existing records are loaded.
func New(cfg Config, engine embedding.Engine) (*Store, error) {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}
	if cfg.ConsistencyTopK <= 0 {
		cfg.ConsistencyTopK = 20
	}
	log := logging.Named(logging.CategoryStore)
	if engine == nil {
		engine = embedding.NewHashEngine(0)
		log.Warn("no embedding engine configured, using deterministic hash fallback",
			zap.String("engine", engine.Name()))
	}

	s := &Store{
		cfg:             cfg,
		log:             log,
		engine:          engine,
		records:         make(map[string]types.TheoremRecord),
		order:           make(map[string]int),
		temporalIdx:     make(map[string]map[string]struct{}),
		jurisdictionIdx: make(map[string]map[string]struct{}),
		domainIdx:       make(map[string]map[string]struct{}),
	}

	if cfg.Path != "" {
		if err := s.openSnapshot(cfg.Path); err != nil {
			return nil, fmt.Errorf("open theorem snapshot: %w", err)
		}
	}
	return s, nil
}

// Close releases the sqlite snapshot, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// TheoremID computes the deterministic content hash of a theorem's identity:
// formula, temporal scope and jurisdiction. Re-adding identical input yields
// the same id.
func TheoremID(formula types.DeonticFormula, scope types.TemporalScope, jurisdiction string) string {
	payload := struct {
		Formula      types.DeonticFormula `json:"formula"`
		Scope        types.TemporalScope  `json:"scope"`
		Jurisdiction string               `json:"jurisdiction"`
	}{formula, scope, jurisdiction}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return "thm_" + hex.EncodeToString(sum[:8])
}

// AddTheorem inserts a theorem into the corpus and updates the secondary
// indexes. Insertion is idempotent: identical (formula, scope, jurisdiction)
// input returns the existing id without duplicating the entry.
func (s *Store) AddTheorem(ctx context.Context, formula types.DeonticFormula, scope types.TemporalScope, meta Meta) (string, error) {
	if !formula.Operator.Valid() {
		return "", fmt.Errorf("invalid deontic operator %q", formula.Operator)
	}
	if formula.Proposition == "" {
		return "", fmt.Errorf("formula proposition must be non-empty")
	}
	if scope.Start != nil && scope.End != nil && scope.End.Before(*scope.Start) {
		return "", fmt.Errorf("temporal scope start after end")
	}

	id := TheoremID(formula, scope, meta.Jurisdiction)

	s.mu.RLock()
	_, exists := s.records[id]
	s.mu.RUnlock()
	if exists {
		s.log.Debug("theorem already present, idempotent add", zap.String("theorem_id", id))
		return id, nil
	}

	// Embed outside the lock; the engine may block on a remote service.
	vec, err := s.engine.Embed(ctx, formula.CanonicalText())
	if err != nil {
		// Retrieval degradation, not failure: fall back to the
		// deterministic pseudo-embedding for this record.
		s.log.Warn("embedding provider failed, using hash fallback",
			zap.String("theorem_id", id), zap.Error(err))
		vec, _ = embedding.NewHashEngine(s.engine.Dimensions()).Embed(ctx, formula.CanonicalText())
	}

	strength := 1.0
	if meta.PrecedentStrength != nil {
		strength = *meta.PrecedentStrength
	}

	rec := types.TheoremRecord{
		TheoremID:         id,
		Formula:           formula,
		Embedding:         vec,
		TemporalScope:     scope,
		Jurisdiction:      meta.Jurisdiction,
		LegalDomain:       meta.LegalDomain,
		SourceCase:        meta.SourceCase,
		PrecedentStrength: types.Clamp01(strength),
		CreatedAt:         time.Now().UTC(),
	}

	s.mu.Lock()
	if _, raced := s.records[id]; raced {
		s.mu.Unlock()
		return id, nil
	}
	s.insertLocked(rec)
	db := s.db
	s.mu.Unlock()

	if db != nil {
		if err := s.persist(ctx, rec); err != nil {
			s.log.Error("failed to persist theorem", zap.String("theorem_id", id), zap.Error(err))
		}
	}

	s.log.Debug("theorem added",
		zap.String("theorem_id", id),
		zap.String("operator", string(formula.Operator)),
		zap.String("jurisdiction", meta.Jurisdiction))
	return id, nil
}

// insertLocked stores the record and updates all three secondary indexes.
// Caller holds the write lock.
func (s *Store) insertLocked(rec types.TheoremRecord) {
	s.records[rec.TheoremID] = rec
	s.order[rec.TheoremID] = s.next
	s.next++

	buckets := rec.TemporalScope.MonthBuckets(maxIndexedMonths)
	if len(buckets) == 0 || len(buckets) == maxIndexedMonths {
		buckets = append(buckets, unboundedBucket)
	}
	for _, b := range buckets {
		addToIndex(s.temporalIdx, b, rec.TheoremID)
	}
	if rec.Jurisdiction != "" {
		addToIndex(s.jurisdictionIdx, rec.Jurisdiction, rec.TheoremID)
	}
	if rec.LegalDomain != "" {
		addToIndex(s.domainIdx, rec.LegalDomain, rec.TheoremID)
	}
}

func addToIndex(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

// Get returns a record by id.
func (s *Store) Get(id string) (types.TheoremRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Len returns the number of theorems in the corpus.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Query scopes a retrieval call. Nil/empty fields mean "no filter".
type Query struct {
	TemporalContext *time.Time
	Jurisdiction    string
	Domain          string
	TopK            int
}

// scored pairs a record with its weighted similarity.
type scored struct {
	rec   types.TheoremRecord
	score float64
	rank  int
}

// RetrieveRelevant returns the top-k theorems ranked by cosine similarity to
// the query formula weighted by precedent strength. Filters intersect the
// secondary indexes before any similarity math runs. Returns an empty slice,
// never an error, when no candidates match.
func (s *Store) RetrieveRelevant(ctx context.Context, query types.DeonticFormula, q Query) ([]types.TheoremRecord, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}

	queryVec, err := s.engine.Embed(ctx, query.CanonicalText())
	if err != nil {
		s.log.Warn("query embedding failed, using hash fallback", zap.Error(err))
		queryVec, _ = embedding.NewHashEngine(s.engine.Dimensions()).Embed(ctx, query.CanonicalText())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidateIDsLocked(q)
	if len(candidates) == 0 {
		return []types.TheoremRecord{}, nil
	}

	results := make([]scored, 0, len(candidates))
	for id := range candidates {
		rec := s.records[id]
		sim, err := embedding.CosineSimilarity(queryVec, rec.Embedding)
		if err != nil {
			// Dimension mismatch between engines; skip rather than fail
			// the whole retrieval.
			continue
		}
		results = append(results, scored{
			rec:   rec,
			score: sim * rec.PrecedentStrength,
			rank:  s.order[id],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].rank < results[j].rank
	})

	if len(results) > topK {
		results = results[:topK]
	}
	out := make([]types.TheoremRecord, len(results))
	for i, r := range results {
		out[i] = r.rec
	}
	return out, nil
}

// candidateIDsLocked intersects the secondary indexes for the supplied
// filters. Caller holds at least the read lock.
func (s *Store) candidateIDsLocked(q Query) map[string]struct{} {
	var sets []map[string]struct{}

	if q.Jurisdiction != "" {
		sets = append(sets, s.jurisdictionIdx[q.Jurisdiction])
	}
	if q.Domain != "" {
		sets = append(sets, s.domainIdx[q.Domain])
	}
	if q.TemporalContext != nil {
		bucket := q.TemporalContext.UTC().Format("2006-01")
		merged := make(map[string]struct{})
		for id := range s.temporalIdx[bucket] {
			merged[id] = struct{}{}
		}
		for id := range s.temporalIdx[unboundedBucket] {
			merged[id] = struct{}{}
		}
		sets = append(sets, merged)
	}

	if len(sets) == 0 {
		all := make(map[string]struct{}, len(s.records))
		for id := range s.records {
			all[id] = struct{}{}
		}
		return all
	}

	// Intersect, smallest set first.
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })
	out := make(map[string]struct{})
	for id := range sets[0] {
		out[id] = struct{}{}
	}
	for _, set := range sets[1:] {
		for id := range out {
			if _, ok := set[id]; !ok {
				delete(out, id)
			}
		}
	}

	// The month bucket is a superset test; verify actual containment for
	// records pulled from the catch-all bucket.
	if q.TemporalContext != nil {
		for id := range out {
			if !s.records[id].TemporalScope.Contains(*q.TemporalContext) {
				delete(out, id)
			}
		}
	}
	return out
}

// Stats summarizes the corpus for operational surfaces.
type Stats struct {
	Theorems        int            `json:"theorems"`
	Jurisdictions   map[string]int `json:"jurisdictions"`
	Domains         map[string]int `json:"domains"`
	EmbeddingEngine string         `json:"embedding_engine"`
	Persistent      bool           `json:"persistent"`
}

// GetStats returns corpus statistics.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Theorems:        len(s.records),
		Jurisdictions:   make(map[string]int, len(s.jurisdictionIdx)),
		Domains:         make(map[string]int, len(s.domainIdx)),
		EmbeddingEngine: s.engine.Name(),
		Persistent:      s.db != nil,
	}
	for k, set := range s.jurisdictionIdx {
		st.Jurisdictions[k] = len(set)
	}
	for k, set := range s.domainIdx {
		st.Domains[k] = len(set)
	}
	return st
}
