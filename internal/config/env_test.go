package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv(EnvDB, "")
	assert.Equal(t, "flow.db", GetEnv(EnvDB, "flow.db"))

	t.Setenv(EnvDB, "/var/lib/flow.db")
	assert.Equal(t, "/var/lib/flow.db", GetEnv(EnvDB, "flow.db"))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FLOW_REPORT_LISTEN=:9090\nFLOW_REPORT_CONFIG=custom.json\n"), 0o644))

	t.Setenv(EnvListen, "")
	t.Setenv(EnvConfig, "preset.json")
	os.Unsetenv(EnvListen)

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, ":9090", os.Getenv(EnvListen))
	assert.Equal(t, "preset.json", os.Getenv(EnvConfig), "existing variables are not overridden")
}

func TestLoadEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
}
