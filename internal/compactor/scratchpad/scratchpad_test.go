package scratchpad

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireStageClean(t *testing.T) {
	root := t.TempDir()
	s := New(filepath.Join(root, "scratch"))

	h, err := s.Acquire(7)
	require.NoError(t, err)

	path, err := h.Stage(context.Background(), "input.parquet", strings.NewReader("data"))
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(contents))

	require.NoError(t, h.Clean())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clean removes the whole staging directory")
}

func TestAcquireIsolatesPartitions(t *testing.T) {
	s := New(t.TempDir())

	h1, err := s.Acquire(1)
	require.NoError(t, err)
	h2, err := s.Acquire(1)
	require.NoError(t, err)

	assert.NotEqual(t, h1.dir, h2.dir, "two acquires for the same partition get independent directories")

	require.NoError(t, h1.Clean())
	require.NoError(t, h2.Clean())
}

func TestCleanIdempotent(t *testing.T) {
	h := &Handle{dir: filepath.Join(t.TempDir(), "never-created")}
	assert.NoError(t, h.Clean())
	assert.NoError(t, h.Clean())
}
