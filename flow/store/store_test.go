package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflux/flowcore/flow"
)

func sampleCheckpoint() *flow.RunCheckpoint {
	return flow.NewCheckpoint(map[string]flow.NodeOutput{
		"trigger": &flow.TriggerOutput{Input: "hello", Timestamp: time.Now().UTC()},
		"agent":   &flow.AIResponseOutput{Content: "drafted reply", Model: "m1", TokensIn: 12, TokensOut: 40},
		"cond":    &flow.ConditionOutput{BranchID: "b1", BranchIndex: 1, Method: flow.MethodDeterministic},
		"broken":  &flow.ErrorOutput{Message: "should be filtered"},
	}, "failed-node")
}

func TestNewCheckpoint_FiltersErrorAndFailedNode(t *testing.T) {
	t.Parallel()
	cp := flow.NewCheckpoint(map[string]flow.NodeOutput{
		"a":      &flow.AIResponseOutput{Content: "x"},
		"failed": &flow.AIResponseOutput{Content: "y"},
		"err":    &flow.ErrorOutput{Message: "boom"},
	}, "failed")
	assert.Len(t, cp.Outputs, 1)
	assert.Contains(t, cp.Outputs, "a")
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	cp := sampleCheckpoint()
	require.NoError(t, s.Save(ctx, "run-1", cp))

	loaded, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed-node", loaded.FailedNodeID)
	require.Contains(t, loaded.Outputs, "agent")

	ai, ok := loaded.Outputs["agent"].(*flow.AIResponseOutput)
	require.True(t, ok)
	assert.Equal(t, "drafted reply", ai.Content)
	assert.Equal(t, 40, ai.TokensOut)

	cond, ok := loaded.Outputs["cond"].(*flow.ConditionOutput)
	require.True(t, ok)
	assert.Equal(t, "b1", cond.BranchID)
	assert.Equal(t, flow.MethodDeterministic, cond.Method)
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "run-1", sampleCheckpoint()))
	require.NoError(t, s.Delete(ctx, "run-1"))
	_, err := s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)
	// deleting again is not an error
	assert.NoError(t, s.Delete(ctx, "run-1"))
}

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestRedisStore(t)
	ctx := context.Background()

	cp := sampleCheckpoint()
	require.NoError(t, s.Save(ctx, "run-2", cp))

	loaded, err := s.Load(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, cp.FailedNodeID, loaded.FailedNodeID)
	assert.Len(t, loaded.Outputs, len(cp.Outputs))

	trig, ok := loaded.Outputs["trigger"].(*flow.TriggerOutput)
	require.True(t, ok)
	assert.Equal(t, "hello", trig.Input)
}

func TestRedisStore_LoadMissing(t *testing.T) {
	t.Parallel()
	s := newTestRedisStore(t)
	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	t.Parallel()
	s := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "run-3", sampleCheckpoint()))
	require.NoError(t, s.Delete(ctx, "run-3"))
	_, err := s.Load(ctx, "run-3")
	assert.ErrorIs(t, err, ErrNotFound)
}
