package depict

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects batch counters on its own registry so several batches
// (and tests) do not collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	ImagesRendered    prometheus.Counter
	Models            *prometheus.CounterVec
	SamplerRejections prometheus.Counter
	ImageDuration     prometheus.Histogram
}

// NewMetrics creates and registers all batch metrics on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ImagesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depict_images_rendered_total",
			Help: "Total number of images saved.",
		}),
		Models: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depict_models_total",
			Help: "Models processed by outcome.",
		}, []string{"status"}),
		SamplerRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depict_sampler_rejections_total",
			Help: "Rotation candidates rejected for being too close to a previous rotation.",
		}),
		ImageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "depict_image_duration_seconds",
			Help:    "Time to rotate, zoom and save one image.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.Registry.MustRegister(m.ImagesRendered, m.Models, m.SamplerRejections, m.ImageDuration)
	return m
}

// WriteTextfile writes the current metric values in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.Registry)
}
