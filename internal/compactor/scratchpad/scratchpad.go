// Package scratchpad provides scoped local staging directories for
// compaction branches: inputs are downloaded here before a plan runs,
// outputs are written here before upload, and the whole directory is
// removed unconditionally on exit.
//
// Grounded on a prior iteration's snapshot manager's atomic-write idiom
// (temp path, guaranteed cleanup on failure), generalized
// from one temp file to a directory of staged files scoped per
// partition per branch.
package scratchpad

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Scratchpad is the factory for per-partition staging directories,
// rooted under one base directory backed by local fast storage.
type Scratchpad struct {
	root string
}

// New builds a Scratchpad rooted at root. The directory is created on
// first Acquire, not here.
func New(root string) *Scratchpad {
	return &Scratchpad{root: root}
}

// Acquire creates a fresh staging directory for one branch's work on
// partition and returns a Handle scoped to it. Callers must call
// Clean, typically via defer, even when the branch errors or times out.
func (s *Scratchpad) Acquire(partition types.PartitionID) (*Handle, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("scratchpad: create root: %w", err)
	}

	dir, err := os.MkdirTemp(s.root, fmt.Sprintf("partition-%d-*", partition))
	if err != nil {
		return nil, fmt.Errorf("scratchpad: acquire: %w", err)
	}

	return &Handle{dir: dir}, nil
}

// Handle is one branch's scoped staging directory.
type Handle struct {
	dir string
}

// Stage writes r's contents to a file named name within the handle's
// directory and returns its path, for downloading compaction inputs or
// writing outputs before upload.
func (h *Handle) Stage(ctx context.Context, name string, r io.Reader) (string, error) {
	path := filepath.Join(h.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("scratchpad: stage %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("scratchpad: stage %s: %w", name, err)
	}

	return path, nil
}

// Path returns the path a staged file named name would occupy, without
// creating it — used to name a plan's output before it is written.
func (h *Handle) Path(name string) string {
	return filepath.Join(h.dir, name)
}

// Clean removes the handle's entire staging directory. It is
// idempotent and safe to call on a handle whose directory was never
// populated.
func (h *Handle) Clean() error {
	return os.RemoveAll(h.dir)
}
