// Package metrics - Prometheus collectors for the post-processing pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records per-image pipeline statistics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	candidates prometheus.Histogram
	detections prometheus.Histogram
	empty      prometheus.Counter
	duration   prometheus.Histogram
}

// NewCollector creates the collectors and registers them on reg.
//
// Arguments:
//   - reg: The registry to register on, usually a prometheus.NewRegistry().
//
// Returns:
//   - *Collector: The registered collector.
//   - error: If a collector with the same name is already registered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	counts := prometheus.ExponentialBuckets(1, 2, 12)
	c := &Collector{
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yolact",
			Name:      "filtered_anchors",
			Help:      "Anchors kept by the score filter per image",
			Buckets:   counts,
		}),
		detections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yolact",
			Name:      "detections",
			Help:      "Detections returned per image",
			Buckets:   counts,
		}),
		empty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yolact",
			Name:      "empty_results_total",
			Help:      "Images for which no detection survived",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yolact",
			Name:      "postprocess_duration_seconds",
			Help:      "Time spent post-processing one image",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, col := range []prometheus.Collector{c.candidates, c.detections, c.empty, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one post-processed image.
func (c *Collector) Observe(filtered, detections int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.candidates.Observe(float64(filtered))
	c.detections.Observe(float64(detections))
	if detections == 0 {
		c.empty.Inc()
	}
	c.duration.Observe(elapsed.Seconds())
}
