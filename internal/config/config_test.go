package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pickpal.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, 3, cfg.Pipeline.MinCandidates)
	assert.Equal(t, 3, cfg.Pipeline.MaxTopK)
	assert.Equal(t, 5, cfg.Pipeline.MinReviews)
	assert.Equal(t, 60, cfg.Pipeline.RequestDeadlineSecs)

	assert.Equal(t, 10, cfg.Discovery.SourceTimeoutSecs)
	assert.Equal(t, 2, cfg.Discovery.MaxExpansions)

	assert.InDelta(t, 0.75, cfg.Clarify.Tau, 0.001)
	assert.Equal(t, 2, cfg.Clarify.MaxQuestions)
	assert.Equal(t, 30, cfg.Clarify.AnswerTimeoutSecs)
	assert.Equal(t, 3, cfg.Clarify.ProbeTimeoutSecs)
	assert.Equal(t, 64, cfg.Clarify.ProbeCacheSize)

	assert.InDelta(t, 0.85, cfg.Normalize.DedupeThreshold, 0.001)
	assert.Equal(t, 8, cfg.Normalize.MaxConcurrency)

	assert.InDelta(t, 0.4, cfg.Rank.Weights["rating"], 0.001)
	assert.InDelta(t, 0.3, cfg.Rank.Weights["sentiment"], 0.001)
	assert.InDelta(t, 0.2, cfg.Rank.Weights["recency"], 0.001)
	assert.InDelta(t, 0.1, cfg.Rank.Weights["helpfulness"], 0.001)
	assert.InDelta(t, 0.2, cfg.Rank.NeutralCutoff, 0.001)
	assert.Equal(t, "brand", cfg.Rank.DiversityKey)

	assert.True(t, cfg.Sources.Fixture.Enabled)
	assert.False(t, cfg.Sources.Catalog.Enabled)
	assert.False(t, cfg.Sources.Gemini.Enabled)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: memory
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  max_topk: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Pipeline.MaxTopK)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Pipeline.MinCandidates)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: memory
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PICKPAL_STORE_DRIVER", "postgres")
	t.Setenv("PICKPAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PICKPAL_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestDefaultMatchesLoad(t *testing.T) {
	chdirTemp(t)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, loaded, Default())
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1m0s", cfg.Pipeline.RequestDeadline().String())
	assert.Equal(t, "10s", cfg.Discovery.SourceTimeout().String())
	assert.Equal(t, "30s", cfg.Clarify.AnswerTimeout().String())
	assert.Equal(t, "3s", cfg.Clarify.ProbeTimeout().String())
	assert.Equal(t, "10s", cfg.Rank.SentimentTimeout().String())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
