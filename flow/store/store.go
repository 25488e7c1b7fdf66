// Package store persists retry checkpoints between runs. The engine itself
// never touches persistence; a caller saves the checkpoint built from a
// failed run and loads it back when retrying.
package store

import (
	"context"
	"errors"

	"github.com/agentflux/flowcore/flow"
)

// ErrNotFound is returned when no checkpoint exists for a run id.
var ErrNotFound = errors.New("checkpoint not found")

// CheckpointStore saves and loads retry checkpoints keyed by run id.
type CheckpointStore interface {
	// Save persists a checkpoint, replacing any previous one for the run.
	Save(ctx context.Context, runID string, cp *flow.RunCheckpoint) error
	// Load retrieves a checkpoint, returning ErrNotFound when absent.
	Load(ctx context.Context, runID string) (*flow.RunCheckpoint, error)
	// Delete removes a checkpoint; deleting a missing checkpoint is not an
	// error.
	Delete(ctx context.Context, runID string) error
	// Close releases the store's resources.
	Close() error
}
