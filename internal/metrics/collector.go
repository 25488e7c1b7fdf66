// Package metrics provides internal metrics collection for the engine.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records engine-level Prometheus metrics.
type Collector struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec

	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec

	loopIterations prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on reg. A nil
// registerer selects the default global registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_started_total",
			Help:      "Total number of flow runs started.",
		}),
		runsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_finished_total",
			Help:      "Total number of flow runs finished, by terminal status.",
		}, []string{"status"}),
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_node_executions_total",
			Help:      "Total number of node executions, by node type and status.",
		}, []string{"node_type", "status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_node_duration_seconds",
			Help:      "Node execution duration in seconds, by node type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type"}),
		loopIterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_loop_iterations_total",
			Help:      "Total number of loop body iterations re-queued.",
		}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// RunStarted counts one run start.
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.runsStarted.Inc()
}

// RunFinished counts one terminal run status ("completed" or "failed").
func (c *Collector) RunFinished(status string) {
	if c == nil {
		return
	}
	c.runsFinished.WithLabelValues(status).Inc()
}

// NodeExecuted records one node dispatch outcome and its duration.
func (c *Collector) NodeExecuted(nodeType, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.nodeExecutions.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// LoopIteration counts one loop body re-queue.
func (c *Collector) LoopIteration() {
	if c == nil {
		return
	}
	c.loopIterations.Inc()
}
