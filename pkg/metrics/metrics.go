// Package metrics exports storage facade operations as Prometheus metrics.
//
// Metrics:
//   - storage_operations_total: operations by op, strategy and result code
//   - storage_operation_duration_seconds: operation latency histogram
//   - storage_bytes_total: payload bytes moved by successful operations
//   - storage_multipart_aborts_total: aborted chunked uploads by strategy
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voilajsx/appkit-sub008/pkg/storage"
)

const namespace = "storage"

// Collector implements storage.Observer.
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	aborts     *prometheus.CounterVec
}

// NewCollector registers the storage metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total storage operations by result code",
			},
			[]string{"op", "strategy", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "strategy"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Payload bytes moved by successful operations",
			},
			[]string{"op", "strategy"},
		),
		aborts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "multipart_aborts_total",
				Help:      "Multipart uploads aborted after a part or completion failure",
			},
			[]string{"strategy"},
		),
	}
}

// ObserveOperation implements storage.Observer.
func (c *Collector) ObserveOperation(_ context.Context, ev storage.OperationEvent) {
	code := storage.ErrorCode(ev.Err)

	c.operations.WithLabelValues(ev.Op, ev.Strategy, code).Inc()
	c.duration.WithLabelValues(ev.Op, ev.Strategy).Observe(ev.Duration.Seconds())

	if ev.Err == nil && ev.Bytes > 0 {
		c.bytes.WithLabelValues(ev.Op, ev.Strategy).Add(float64(ev.Bytes))
	}
	if code == storage.CodeMultipartAborted {
		c.aborts.WithLabelValues(ev.Strategy).Inc()
	}
}

var _ storage.Observer = (*Collector)(nil)
