package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 0.9, cfg.Dedupe.SimilarityThreshold)
	assert.Equal(t, 100, cfg.Scoring.NoWebsite)
	assert.Equal(t, 75, cfg.Scoring.PoorWebsite)
	assert.Equal(t, 50, cfg.Progress.MinResultsForCompletion)
	assert.Equal(t, 7, cfg.Progress.RescrapeWindowDays)
	assert.Equal(t, DefaultQualitySteps(), cfg.Progress.QualitySteps)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEADSCOUT_STORE_DRIVER", "postgres")
	t.Setenv("LEADSCOUT_DEDUPE_SIMILARITY_THRESHOLD", "0.85")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 0.85, cfg.Dedupe.SimilarityThreshold)
}

func TestDefaultQualitySteps_Ordering(t *testing.T) {
	steps := DefaultQualitySteps()
	require.NotEmpty(t, steps)
	for i := 1; i < len(steps); i++ {
		assert.Greater(t, steps[i-1].MinFound, steps[i].MinFound)
	}
	// Final step is the catch-all.
	assert.Equal(t, 0, steps[len(steps)-1].MinFound)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "nonsense", Format: "json"}))
}
