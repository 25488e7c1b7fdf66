package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentflux/flowcore/flow"
)

// MemoryStore is an in-process CheckpointStore for tests and single-node
// deployments. Checkpoints are stored in their wire form so Load returns an
// independent copy.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Save persists a checkpoint.
func (s *MemoryStore) Save(ctx context.Context, runID string, cp *flow.RunCheckpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[runID] = raw
	return nil
}

// Load retrieves a checkpoint.
func (s *MemoryStore) Load(ctx context.Context, runID string) (*flow.RunCheckpoint, error) {
	s.mu.RLock()
	raw, ok := s.data[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := &flow.RunCheckpoint{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

// Delete removes a checkpoint.
func (s *MemoryStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
