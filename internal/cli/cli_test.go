package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd)
	assert.Equal(t, "tsdbcore", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)

	commands := cmd.Commands()
	assert.Len(t, commands, 3)

	commandNames := make(map[string]bool)
	for _, c := range commands {
		commandNames[c.Use] = true
	}

	assert.True(t, commandNames["ingest"])
	assert.True(t, commandNames["compact"])
	assert.True(t, commandNames["status"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestBuildIngestCommand(t *testing.T) {
	cmd := buildIngestCommand()
	assert.Equal(t, "ingest", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildCompactCommand(t *testing.T) {
	cmd := buildCompactCommand()
	assert.Equal(t, "compact", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestShowStatusReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
wal:
  dir: /tmp/wal
objectstore:
  backend: memory
`), 0o644))

	old := configFile
	configFile = path
	defer func() { configFile = old }()

	require.NoError(t, showStatus())
}

func TestShowStatusMissingConfigReturnsError(t *testing.T) {
	old := configFile
	configFile = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { configFile = old }()

	assert.Error(t, showStatus())
}
