package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

func TestRunFlagsOverrideConfig(t *testing.T) {
	f := &runFlags{}
	cmd := runCommand(f)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--browser", "firefox",
		"--timeout", "3s",
		"--teardown", "always",
		"--no-screenshots",
		"--shared-objects", "a,b",
		"--tags", "@smoke",
	}))

	cfg := config.Default()
	cfg.ReportsDir = "from-env"
	f.apply(cmd.Flags(), &cfg, []string{"features/checkout"})

	assert.Equal(t, "firefox", cfg.Browser)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "always", cfg.TeardownPolicy)
	assert.False(t, cfg.Screenshots)
	assert.Equal(t, []string{"a", "b"}, cfg.SharedObjectDirs)
	assert.Equal(t, "@smoke", cfg.Tags)
	assert.Equal(t, []string{"features/checkout"}, cfg.Features)
	assert.Equal(t, "from-env", cfg.ReportsDir, "unset flags keep env values")
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeSuccess, exitCode(nil))
	assert.Equal(t, 3, exitCode(&exitError{code: 3}))
	assert.Equal(t, ExitCodeUsage, exitCode(&usageError{err: errors.New("bad timeout")}))
	assert.Equal(t, ExitCodeFailed, exitCode(errors.New("boom")))
}

func TestListBrowsers(t *testing.T) {
	factory := driver.NewDefaultFactory(zap.NewNop(), driver.Options{ChromePath: "/opt/chrome"})

	var table bytes.Buffer
	require.NoError(t, listBrowsers(&table, factory, false))
	assert.Contains(t, table.String(), "NAME")
	assert.Contains(t, table.String(), "/opt/chrome")
	assert.Contains(t, table.String(), "firefox")

	var out bytes.Buffer
	require.NoError(t, listBrowsers(&out, factory, true))
	var rows []browserRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	assert.Len(t, rows, len(factory.Names()))
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "serve", "browsers"})
}
