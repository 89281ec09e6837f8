package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashEngineDeterministic(t *testing.T) {
	e := NewHashEngine(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "OBLIGATION(tenant, pay_rent)")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "OBLIGATION(tenant, pay_rent)")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(a) != DefaultHashDimensions {
		t.Fatalf("dimensions = %d, want %d", len(a), DefaultHashDimensions)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestHashEngineIdenticalTextRanksFirst(t *testing.T) {
	e := NewHashEngine(128)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "PROHIBITION(tenant, sublet)")
	same, _ := e.Embed(ctx, "PROHIBITION(tenant, sublet)")
	other, _ := e.Embed(ctx, "OBLIGATION(landlord, maintain_premises)")

	simSame, err := CosineSimilarity(query, same)
	if err != nil {
		t.Fatalf("CosineSimilarity: %v", err)
	}
	simOther, err := CosineSimilarity(query, other)
	if err != nil {
		t.Fatalf("CosineSimilarity: %v", err)
	}

	if math.Abs(simSame-1.0) > 1e-6 {
		t.Fatalf("identical text similarity = %v, want 1.0", simSame)
	}
	if simOther >= simSame {
		t.Fatalf("unrelated text similarity %v should rank below identical %v", simOther, simSame)
	}
}

func TestHashEngineUnitNorm(t *testing.T) {
	e := NewHashEngine(64)
	vec, err := e.Embed(context.Background(), "some statement")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(mag)-1.0) > 1e-5 {
		t.Fatalf("vector magnitude = %v, want 1.0", math.Sqrt(mag))
	}
}

func TestCosineSimilarityErrors(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 0}, []float32{1}); err == nil {
		t.Fatal("dimension mismatch must error")
	}
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{0, 0})
	if err != nil || sim != 0 {
		t.Fatalf("zero vectors: sim=%v err=%v, want 0 nil", sim, err)
	}
}
