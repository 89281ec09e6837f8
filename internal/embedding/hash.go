package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultHashDimensions is the vector size of the fallback engine.
const DefaultHashDimensions = 256

// HashEngine produces deterministic pseudo-embeddings by expanding a sha256
// digest of the input text. It carries no semantic signal beyond exact-text
// identity, but it keeps cosine similarity well-defined when no embedding
// service is available: identical canonical texts rank first, everything
// else ranks by noise.
type HashEngine struct {
	dims int
}

// NewHashEngine creates the fallback engine. dims <= 0 uses the default.
func NewHashEngine(dims int) *HashEngine {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEngine{dims: dims}
}

// Embed expands sha256(text || counter) into a unit-normalized vector.
func (e *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	var counter uint32
	var digest [sha256.Size]byte
	var pos = sha256.Size // force refill on first iteration

	for i := 0; i < e.dims; i++ {
		if pos+4 > sha256.Size {
			h := sha256.New()
			h.Write([]byte(text))
			var ctr [4]byte
			binary.BigEndian.PutUint32(ctr[:], counter)
			h.Write(ctr[:])
			copy(digest[:], h.Sum(nil))
			counter++
			pos = 0
		}
		raw := binary.BigEndian.Uint32(digest[pos : pos+4])
		pos += 4
		// Map to [-1, 1).
		vec[i] = float32(int64(raw)-math.MaxInt32) / float32(math.MaxInt32)
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *HashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (e *HashEngine) Dimensions() int {
	return e.dims
}

// Name returns the engine name.
func (e *HashEngine) Name() string {
	return fmt.Sprintf("hash:%d", e.dims)
}
