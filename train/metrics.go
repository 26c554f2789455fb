package train

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors a Trainer reports to.
type Metrics struct {
	Loss             prometheus.Gauge
	EpochsTotal      prometheus.Counter
	BackwardDuration prometheus.Histogram
	GraphNodes       prometheus.Gauge
	DivergedTotal    prometheus.Counter
}

// NewMetrics registers the trainer collectors on reg. A nil reg creates
// unregistered collectors, which is what tests and throwaway trainers want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Loss: f.NewGauge(prometheus.GaugeOpts{
			Name: "scalargrad_train_loss",
			Help: "Loss of the most recent training epoch",
		}),
		EpochsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "scalargrad_train_epochs_total",
			Help: "Total number of completed training epochs",
		}),
		BackwardDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scalargrad_backward_duration_seconds",
			Help:    "Duration of one backward pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
		GraphNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "scalargrad_graph_nodes",
			Help: "Number of nodes in the most recent loss graph",
		}),
		DivergedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "scalargrad_train_diverged_total",
			Help: "Training runs stopped because the loss was not finite",
		}),
	}
}
