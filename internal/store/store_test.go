package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"normlex/internal/embedding"
	"normlex/internal/types"
)

func testFormula(t *testing.T, op types.DeonticOperator, prop string) types.DeonticFormula {
	t.Helper()
	f, err := types.NewDeonticFormula(op, prop, "tenant", 0.9)
	require.NoError(t, err)
	return f
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	return s
}

func TestAddTheoremIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := testFormula(t, types.Obligation, "pay_rent")

	id1, err := s.AddTheorem(ctx, f, types.TemporalScope{}, Meta{Jurisdiction: "NY"})
	require.NoError(t, err)
	id2, err := s.AddTheorem(ctx, f, types.TemporalScope{}, Meta{Jurisdiction: "NY"})
	require.NoError(t, err)

	require.Equal(t, id1, id2)
	require.Equal(t, 1, s.Len())

	// Different jurisdiction is a different theorem.
	id3, err := s.AddTheorem(ctx, f, types.TemporalScope{}, Meta{Jurisdiction: "CA"})
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
	require.Equal(t, 2, s.Len())
}

func TestAddTheoremRejectsInvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTheorem(ctx, types.DeonticFormula{Operator: "NONSENSE", Proposition: "x"}, types.TemporalScope{}, Meta{})
	require.Error(t, err)

	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.AddTheorem(ctx, testFormula(t, types.Obligation, "x"), types.TemporalScope{Start: &start, End: &end}, Meta{})
	require.Error(t, err)
}

func TestAddTheoremPrecedentStrengthDefaulting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Absent strength means fully authoritative.
	id, err := s.AddTheorem(ctx, testFormula(t, types.Obligation, "pay_rent"),
		types.TemporalScope{}, Meta{Jurisdiction: "NY"})
	require.NoError(t, err)
	rec, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, 1.0, rec.PrecedentStrength)

	// An explicit zero stays zero instead of being promoted to the default.
	zero := 0.0
	id, err = s.AddTheorem(ctx, testFormula(t, types.Obligation, "pay_tax"),
		types.TemporalScope{}, Meta{Jurisdiction: "NY", PrecedentStrength: &zero})
	require.NoError(t, err)
	rec, ok = s.Get(id)
	require.True(t, ok)
	require.Zero(t, rec.PrecedentStrength)
}

func TestRetrieveRelevantTopKAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	props := []string{"pay_rent", "maintain_premises", "return_deposit", "provide_notice", "disclose_defects"}
	for _, p := range props {
		_, err := s.AddTheorem(ctx, testFormula(t, types.Obligation, p), types.TemporalScope{}, Meta{Jurisdiction: "NY"})
		require.NoError(t, err)
	}

	query := testFormula(t, types.Obligation, "pay_rent")
	got, err := s.RetrieveRelevant(ctx, query, Query{Jurisdiction: "NY", TopK: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Identical canonical text ranks first under the hash engine.
	require.Equal(t, "pay_rent", got[0].Formula.Proposition)

	// Results come back in descending weighted similarity.
	prev := 2.0
	for _, rec := range got {
		sim := weightedSimilarity(t, s, query, rec)
		require.LessOrEqual(t, sim, prev+1e-9)
		prev = sim
	}
}

func weightedSimilarity(t *testing.T, s *Store, query types.DeonticFormula, rec types.TheoremRecord) float64 {
	t.Helper()
	qv, err := s.engine.Embed(context.Background(), query.CanonicalText())
	require.NoError(t, err)
	sim, err := embedding.CosineSimilarity(qv, rec.Embedding)
	require.NoError(t, err)
	return sim * rec.PrecedentStrength
}

func TestRetrieveRelevantEmptyCorpus(t *testing.T) {
	s := newTestStore(t)
	got, err := s.RetrieveRelevant(context.Background(), testFormula(t, types.Obligation, "pay_rent"), Query{Jurisdiction: "TX"})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRetrieveRelevantFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2018, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err := s.AddTheorem(ctx, testFormula(t, types.Obligation, "pay_rent"),
		types.TemporalScope{Start: &start, End: &end}, Meta{Jurisdiction: "NY", LegalDomain: "housing"})
	require.NoError(t, err)
	_, err = s.AddTheorem(ctx, testFormula(t, types.Obligation, "pay_tax"),
		types.TemporalScope{}, Meta{Jurisdiction: "CA", LegalDomain: "tax"})
	require.NoError(t, err)

	// Jurisdiction filter excludes CA.
	got, err := s.RetrieveRelevant(ctx, testFormula(t, types.Obligation, "pay_rent"), Query{Jurisdiction: "NY"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "NY", got[0].Jurisdiction)

	// Temporal filter: inside the scope matches, outside does not.
	inside := time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err = s.RetrieveRelevant(ctx, testFormula(t, types.Obligation, "pay_rent"),
		Query{Jurisdiction: "NY", TemporalContext: &inside})
	require.NoError(t, err)
	require.Len(t, got, 1)

	outside := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err = s.RetrieveRelevant(ctx, testFormula(t, types.Obligation, "pay_rent"),
		Query{Jurisdiction: "NY", TemporalContext: &outside})
	require.NoError(t, err)
	require.Empty(t, got)

	// Unbounded scopes always pass the temporal filter.
	got, err = s.RetrieveRelevant(ctx, testFormula(t, types.Obligation, "pay_tax"),
		Query{Jurisdiction: "CA", TemporalContext: &outside})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestCheckDocumentConsistencyTemporalConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2015, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err := s.AddTheorem(ctx, testFormula(t, types.Obligation, "pay_rent"),
		types.TemporalScope{Start: &start, End: &end}, Meta{Jurisdiction: "NY"})
	require.NoError(t, err)

	after := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := s.CheckDocumentConsistency(ctx,
		[]types.DeonticFormula{testFormula(t, types.Obligation, "pay_rent")},
		ConsistencyQuery{Jurisdiction: "NY", TemporalContext: &after}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.TemporalConflicts)
	require.True(t, res.IsConsistent, "temporal drift alone is not a logical conflict")
}

func TestCheckDocumentConsistencyConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTheorem(ctx, testFormula(t, types.Obligation, "pay_rent"),
		types.TemporalScope{}, Meta{Jurisdiction: "NY"})
	require.NoError(t, err)

	res, err := s.CheckDocumentConsistency(ctx,
		[]types.DeonticFormula{testFormula(t, types.Prohibition, "pay_rent")},
		ConsistencyQuery{Jurisdiction: "NY"}, nil)
	require.NoError(t, err)
	require.False(t, res.IsConsistent)
	require.Len(t, res.Conflicts, 1)
	require.Equal(t, types.ConflictObligationProhibition, res.Conflicts[0].Type)
	require.Equal(t, types.SeverityHigh, res.Conflicts[0].Severity)

	// Same assertion as the corpus: consistent, confidence above 0.5.
	res, err = s.CheckDocumentConsistency(ctx,
		[]types.DeonticFormula{testFormula(t, types.Obligation, "pay_rent")},
		ConsistencyQuery{Jurisdiction: "NY"}, nil)
	require.NoError(t, err)
	require.True(t, res.IsConsistent)
	require.Greater(t, res.ConfidenceScore, 0.5)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Path = path
	s, err := New(cfg, nil)
	require.NoError(t, err)

	f := testFormula(t, types.Prohibition, "sublet_without_consent")
	strength := 0.7
	id, err := s.AddTheorem(ctx, f, types.TemporalScope{}, Meta{Jurisdiction: "NY", LegalDomain: "housing", PrecedentStrength: &strength})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 1, reopened.Len())
	rec, ok := reopened.Get(id)
	require.True(t, ok)
	require.Equal(t, f.Proposition, rec.Formula.Proposition)
	require.InDelta(t, 0.7, rec.PrecedentStrength, 1e-9)

	// Retrieval works against hydrated indexes.
	got, err := reopened.RetrieveRelevant(ctx, f, Query{Jurisdiction: "NY", Domain: "housing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
}
