package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/agenthands/relate/internal/core/scoring"
)

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// LLMConfig selects the optional external arbitration provider. Leaving the
// provider empty runs the engine with deterministic strategies only.
type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type ScoringConfig struct {
	Weights scoring.Weights `toml:"weights"`
}

type ResolutionConfig struct {
	DefaultThreshold          float64 `toml:"default_threshold"`
	DefaultStrategy           string  `toml:"default_strategy"`
	MaxCandidates             int     `toml:"max_candidates"`
	ArbitrationTimeoutSeconds int     `toml:"arbitration_timeout_seconds"`
}

type Config struct {
	Memgraph   MemgraphConfig   `toml:"memgraph"`
	LLM        LLMConfig        `toml:"llm"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Resolution ResolutionConfig `toml:"resolution"`
}

func Default() *Config {
	return &Config{
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Scoring: ScoringConfig{
			Weights: scoring.DefaultWeights(),
		},
		Resolution: ResolutionConfig{
			DefaultThreshold:          0.7,
			DefaultStrategy:           "prefer_complete",
			MaxCandidates:             50000,
			ArbitrationTimeoutSeconds: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}
