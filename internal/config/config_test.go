package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "hash", cfg.Embedding.Provider)
	require.Equal(t, 100, cfg.Checker.MaxFormulasPerDocument)
	require.Equal(t, 10, cfg.Store.DefaultTopK)
	require.False(t, cfg.Debug)
}

func TestExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normlex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug: true
store:
  path: /tmp/theorems.db
  default_top_k: 5
embedding:
  provider: ollama
  ollama_model: nomic-embed-text
checker:
  max_formulas_per_document: 50
bulk:
  parallel: true
  workers: 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Debug)
	require.Equal(t, "/tmp/theorems.db", cfg.Store.Path)
	require.Equal(t, 5, cfg.Store.DefaultTopK)
	require.Equal(t, "ollama", cfg.Embedding.Provider)
	require.Equal(t, "nomic-embed-text", cfg.Embedding.OllamaModel)
	require.Equal(t, 50, cfg.Checker.MaxFormulasPerDocument)
	require.True(t, cfg.Bulk.Parallel)
	require.Equal(t, 8, cfg.Bulk.Workers)
	// Untouched sections keep their defaults.
	require.Equal(t, 20, cfg.Store.ConsistencyTopK)
}

func TestMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NORMLEX_DB", "/tmp/env.db")
	t.Setenv("NORMLEX_EMBEDDING_PROVIDER", "openai")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.Embedding.OpenAIAPIKey)
	require.Equal(t, "/tmp/env.db", cfg.Store.Path)
	require.Equal(t, "openai", cfg.Embedding.Provider)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
