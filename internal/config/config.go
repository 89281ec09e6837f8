// Package config loads the normlex YAML configuration, layering file values
// over component defaults and environment overrides on top.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"normlex/internal/bulk"
	"normlex/internal/checker"
	"normlex/internal/embedding"
	"normlex/internal/prover"
	"normlex/internal/store"
)

// DefaultFileName is looked up in the working directory when no explicit
// path is given.
const DefaultFileName = "normlex.yaml"

// Config aggregates every component's configuration.
type Config struct {
	Debug     bool             `yaml:"debug"`
	Store     store.Config     `yaml:"store"`
	Embedding embedding.Config `yaml:"embedding"`
	Prover    prover.Config    `yaml:"prover"`
	Checker   checker.Config   `yaml:"checker"`
	Bulk      bulk.Config      `yaml:"bulk"`
}

// Default returns the fully defaulted configuration: in-memory store, hash
// embeddings, provers probed from PATH.
func Default() Config {
	return Config{
		Store:     store.DefaultConfig(),
		Embedding: embedding.DefaultConfig(),
		Prover:    prover.DefaultConfig(),
		Checker:   checker.DefaultConfig(),
		Bulk:      bulk.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path tries DefaultFileName and falls back
// to pure defaults when absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !explicit && os.IsNotExist(err):
		// No config file is fine; defaults apply.
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets credentials and the store path come from the
// environment so they stay out of config files.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.OpenAIAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Embedding.GenAIAPIKey = key
	}
	if path := os.Getenv("NORMLEX_DB"); path != "" {
		cfg.Store.Path = path
	}
	if provider := os.Getenv("NORMLEX_EMBEDDING_PROVIDER"); provider != "" {
		cfg.Embedding.Provider = provider
	}
}
