package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCollector_Counts(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("flowcore", reg, zap.NewNop())

	c.RunStarted()
	c.RunStarted()
	c.RunFinished("completed")
	c.RunFinished("failed")
	c.NodeExecuted("agent", "completed", 20*time.Millisecond)
	c.NodeExecuted("agent", "errored", 5*time.Millisecond)
	c.LoopIteration()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsFinished.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsFinished.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.nodeExecutions.WithLabelValues("agent", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.loopIterations))
}

func TestCollector_NilSafe(t *testing.T) {
	t.Parallel()
	var c *Collector
	c.RunStarted()
	c.RunFinished("completed")
	c.NodeExecuted("agent", "completed", time.Millisecond)
	c.LoopIteration()
}
