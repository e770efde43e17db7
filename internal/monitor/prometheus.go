package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink forwards monitor counters to a Prometheus registry using
// the standard collector-set-per-sink pattern.
type PrometheusSink struct {
	registry       *prometheus.Registry
	tasksStarted   prometheus.Counter
	tasksSucceeded prometheus.Counter
	tasksFailed    prometheus.Counter
	queueSize      *prometheus.GaugeVec
}

// NewPrometheusSink registers a fresh collector set under namespace on a
// new registry and returns a Sink backed by it.
func NewPrometheusSink(namespace string) *PrometheusSink {
	registry := prometheus.NewRegistry()
	ps := &PrometheusSink{
		registry: registry,
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_started_total", Help: "Total tasks started.",
		}),
		tasksSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_succeeded_total", Help: "Total tasks succeeded.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_failed_total", Help: "Total tasks failed.",
		}),
		queueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_size", Help: "Current queue depth by name.",
		}, []string{"queue"}),
	}
	registry.MustRegister(ps.tasksStarted, ps.tasksSucceeded, ps.tasksFailed, ps.queueSize)
	return ps
}

// Registry exposes the underlying Prometheus registry for wiring an HTTP
// scrape endpoint (promhttp.HandlerFor).
func (ps *PrometheusSink) Registry() *prometheus.Registry { return ps.registry }

func (ps *PrometheusSink) ObserveTaskStarted() { ps.tasksStarted.Inc() }

func (ps *PrometheusSink) ObserveTaskCompleted(success bool) {
	if success {
		ps.tasksSucceeded.Inc()
	} else {
		ps.tasksFailed.Inc()
	}
}

func (ps *PrometheusSink) ObserveQueueSize(name string, size int) {
	ps.queueSize.WithLabelValues(name).Set(float64(size))
}
