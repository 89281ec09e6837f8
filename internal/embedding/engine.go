// Package embedding generates vector embeddings for deontic formula text.
// Supports Ollama (local), OpenAI and Google GenAI backends, plus a
// deterministic hash-based fallback so similarity math stays defined when no
// embedding service is reachable.
package embedding

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"normlex/internal/logging"
)

// Engine generates vector embeddings for text. Implementations must be
// deterministic for identical input within a process lifetime; retrieval
// caching depends on it.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Name returns the engine name for logging and stats.
	Name() string
}

// HealthChecker is an optional interface for engines that can verify their
// backing service before batch work starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama", "openai", "genai" or "hash".
	Provider string `json:"provider" yaml:"provider"`

	OllamaEndpoint string `json:"ollama_endpoint" yaml:"ollama_endpoint"`
	OllamaModel    string `json:"ollama_model" yaml:"ollama_model"`

	OpenAIAPIKey string `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIModel  string `json:"openai_model" yaml:"openai_model"`

	GenAIAPIKey string `json:"genai_api_key" yaml:"genai_api_key"`
	GenAIModel  string `json:"genai_model" yaml:"genai_model"`

	// HashDimensions sizes the fallback pseudo-embedding.
	HashDimensions int `json:"hash_dimensions" yaml:"hash_dimensions"`
}

// DefaultConfig returns the deterministic hash fallback; real providers are
// opt-in via configuration.
func DefaultConfig() Config {
	return Config{
		Provider:       "hash",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "embeddinggemma",
		OpenAIModel:    "text-embedding-3-small",
		GenAIModel:     "gemini-embedding-001",
		HashDimensions: DefaultHashDimensions,
	}
}

// NewEngine creates an embedding engine from configuration. Unknown
// providers are an error; callers that want graceful degradation should
// fall back to NewHashEngine themselves.
func NewEngine(cfg Config) (Engine, error) {
	log := logging.Named(logging.CategoryEmbedding)
	log.Debug("creating embedding engine", zap.String("provider", cfg.Provider))

	var engine Engine
	var err error

	switch cfg.Provider {
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "openai":
		engine, err = NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	case "hash", "":
		engine, err = NewHashEngine(cfg.HashDimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'openai', 'genai' or 'hash')", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	log.Info("embedding engine ready",
		zap.String("name", engine.Name()),
		zap.Int("dimensions", engine.Dimensions()))
	return engine, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value in [-1, 1]; zero-magnitude vectors yield 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
