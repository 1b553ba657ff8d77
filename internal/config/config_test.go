package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "bolt://localhost:7687", cfg.Memgraph.URI)
	assert.Equal(t, 0.7, cfg.Resolution.DefaultThreshold)
	assert.Equal(t, "prefer_complete", cfg.Resolution.DefaultStrategy)
	assert.InDelta(t, 1.0, cfg.Scoring.Weights.Email+cfg.Scoring.Weights.Name+
		cfg.Scoring.Weights.Phone+cfg.Scoring.Weights.Company+cfg.Scoring.Weights.Metadata, 1e-9)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[memgraph]
uri = "bolt://graph:7687"

[resolution]
default_threshold = 0.85

[scoring.weights]
email = 0.5
name = 0.5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
	assert.Equal(t, 0.85, cfg.Resolution.DefaultThreshold)
	assert.Equal(t, 0.5, cfg.Scoring.Weights.Email)
	// Untouched sections keep their defaults.
	assert.Equal(t, "prefer_complete", cfg.Resolution.DefaultStrategy)
	assert.Equal(t, 50000, cfg.Resolution.MaxCandidates)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
