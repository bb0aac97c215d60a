package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "msrp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "msrp:\n  listen:\n    address: \":9999\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen.Address)
	assert.Equal(t, []string{"*"}, cfg.Session.AcceptTypes)
	assert.True(t, cfg.Session.AutomaticReports)
	assert.Equal(t, "30s", cfg.Session.ResponseTimeout)
	assert.Equal(t, 1, cfg.Relay.Shards)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":2855", cfg.Listen.Address)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfigFile(t, "msrp:\n  log:\n    level: \"loud\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsKafkaEnabledWithoutTopic(t *testing.T) {
	path := writeConfigFile(t, "msrp:\n  kafka:\n    enabled: true\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsCaptureEnabledWithoutInterface(t *testing.T) {
	path := writeConfigFile(t, "msrp:\n  capture:\n    enabled: true\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
