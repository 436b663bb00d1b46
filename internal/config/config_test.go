package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 24, cfg.QueryIDTTLHours)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	// Comments and trailing commas are tolerated.
	content := `{
		// bigger batches
		"page_size": 50,
		"include_raw": true,
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.PageSize)
	assert.True(t, cfg.IncludeRaw)
	assert.Equal(t, 30, cfg.TimeoutSeconds, "unset fields keep defaults")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"page_size": }`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"page_size": 50}`), 0o644))

	t.Setenv(EnvPageSize, "5")
	t.Setenv(EnvQueryIDTTL, "48")
	t.Setenv(EnvAPIBase, "http://localhost:9999")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 48*time.Hour, cfg.QueryIDTTL())
	assert.Equal(t, "http://localhost:9999", cfg.APIBase)
}

func TestEnvNonNumericIgnored(t *testing.T) {
	t.Setenv(EnvPageSize, "lots")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.PageSize)
}

func TestMergeQuoteDepthNegativeOverlayWins(t *testing.T) {
	merged := Merge(DefaultConfig(), &Config{QuoteDepth: -1})
	assert.Equal(t, -1, merged.QuoteDepth, "an explicit -1 disables quotes")
}
