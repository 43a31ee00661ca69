package wal

import (
	"context"
	"errors"
)

// ErrDiskFull is the one ingest-state condition Replay treats as
// non-blocking: replay proceeds even while the gate reports it, since
// refusing to free WAL segments would only make a full disk worse.
var ErrDiskFull = errors.New("wal: ingest state reports disk full")

// IngestStateGate reports transient backpressure conditions the write
// path is under. Replay polls it before applying each op.
type IngestStateGate interface {
	// Check returns nil if ingest may proceed, ErrDiskFull if disk space
	// is the only concern (non-blocking), or any other error to signal a
	// blocking condition.
	Check(ctx context.Context) error
}

// AlwaysReady never blocks; used by tests and by deployments with no
// backpressure signal wired up.
type AlwaysReady struct{}

func (AlwaysReady) Check(ctx context.Context) error { return nil }
