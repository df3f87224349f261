package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "chrome", cfg.Browser)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.True(t, cfg.Screenshots)
	assert.Empty(t, cfg.ResultsFile())
	require.NoError(t, cfg.Validate())
}

func TestFromLookupOverlays(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		EnvBrowser:       "firefox",
		EnvTimeout:       "3000",
		EnvPollInterval:  "250ms",
		EnvTeardown:      "always",
		EnvReports:       "out/reports",
		EnvScreenshots:   "false",
		EnvSharedObjects: "objects/common, objects/site",
		EnvFeatures:      "features/login.feature",
		EnvTags:          "@smoke && ~@wip",
	}))
	require.NoError(t, err)

	assert.Equal(t, "firefox", cfg.Browser)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "always", cfg.TeardownPolicy)
	assert.False(t, cfg.Screenshots)
	assert.Equal(t, []string{"objects/common", "objects/site"}, cfg.SharedObjectDirs)
	assert.Equal(t, []string{"features/login.feature"}, cfg.Features)
	assert.Equal(t, "@smoke && ~@wip", cfg.Tags)
	assert.Equal(t, filepath.Join("out/reports", "results.json"), cfg.ResultsFile())
	assert.Equal(t, "out/reports", cfg.JUnitOutputDir())
}

func TestFromLookupRejectsBadValues(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		EnvTimeout:     "soon",
		EnvScreenshots: "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvTimeout)
	assert.Contains(t, err.Error(), EnvScreenshots)
}

func TestFromEnvLoadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CUKE_BROWSER=webkit\nCUKE_JUNIT=junit-out\n"), 0644))
	for _, key := range []string{EnvBrowser, EnvJUnit} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := FromEnv(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "webkit", cfg.Browser)
	assert.Equal(t, "junit-out", cfg.JUnitOutputDir())
}

func TestFromEnvPrefersProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CUKE_BROWSER=webkit\n"), 0644))
	t.Setenv(EnvBrowser, "chromium")

	cfg, err := FromEnv(envFile)
	require.NoError(t, err)
	assert.Equal(t, "chromium", cfg.Browser)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Browser = " "
	cfg.Timeout = 0
	cfg.Features = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser is required")
	assert.Contains(t, err.Error(), "timeout must be positive")
	assert.Contains(t, err.Error(), "feature path")

	cfg = Default()
	cfg.PollInterval = time.Minute
	assert.ErrorContains(t, cfg.Validate(), "exceeds timeout")
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = ParseDuration("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = ParseDuration("")
	assert.Error(t, err)
}
