package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "web", config.Platform)
	assert.Equal(t, 5, config.Session.QueuedOperationLimit)

	terminateAfter, err := config.Session.TerminateAfterDuration()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, terminateAfter)

	pollTimeout, err := config.Session.PollTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, pollTimeout)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
runtime: https://example.com/runtime/mod.tsx
engine: rust
engine_url: http://localhost:5000
web:
  port: 8080
session:
  queued_operation_limit: 12
  terminate_after: 5m
`), 0o644))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/runtime/mod.tsx", config.Runtime)
	assert.Equal(t, "rust", config.Engine)
	assert.Equal(t, 8080, config.Web.Port)
	assert.Equal(t, 12, config.Session.QueuedOperationLimit)

	terminateAfter, err := config.Session.TerminateAfterDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, terminateAfter)

	// Untouched fields keep their defaults.
	assert.Equal(t, "target", config.OutDir)
	assert.Equal(t, "30s", config.Session.PollTimeout)
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objection.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestInvalidDurations(t *testing.T) {
	session := SessionConfig{TerminateAfter: "soon", PollTimeout: "later"}

	_, err := session.TerminateAfterDuration()
	assert.Error(t, err)

	_, err = session.PollTimeoutDuration()
	assert.Error(t, err)
}
