// Package usmmetrics exposes Prometheus counters for demux batch runs:
// chunks parsed, tracks demuxed, bytes written, and demux errors, each
// labeled by track kind, following the standard client_golang
// registration idiom. The core codec (internal/usm) never imports this
// package; the CLI wraps calls to it at the call site, so the core keeps
// its single-threaded, synchronous contract.
package usmmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the instrumentation surface a demux run reports to. The CLI
// passes either a NopRecorder (the default, when --metrics-addr is unset)
// or a *PromRecorder.
type Recorder interface {
	ObserveChunkParsed(kind string)
	ObserveTrackDemuxed(kind string)
	ObserveBytesWritten(kind string, n uint64)
	ObserveDemuxError(kind string)
}

// NopRecorder discards every observation. It is the zero-overhead default.
type NopRecorder struct{}

func (NopRecorder) ObserveChunkParsed(kind string)            {}
func (NopRecorder) ObserveTrackDemuxed(kind string)           {}
func (NopRecorder) ObserveBytesWritten(kind string, n uint64) {}
func (NopRecorder) ObserveDemuxError(kind string)             {}

// PromRecorder records observations into a private Prometheus registry.
type PromRecorder struct {
	registry *prometheus.Registry

	chunksParsed  *prometheus.CounterVec
	tracksDemuxed *prometheus.CounterVec
	bytesWritten  *prometheus.CounterVec
	demuxErrors   *prometheus.CounterVec
}

var _ Recorder = (*PromRecorder)(nil)

// NewPromRecorder builds a fresh registry and registers every metric on it.
func NewPromRecorder() *PromRecorder {
	reg := prometheus.NewRegistry()

	return &PromRecorder{
		registry: reg,
		chunksParsed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "usm",
			Name:      "chunks_parsed_total",
			Help:      "Number of USM stream chunks parsed, by track kind.",
		}, []string{"kind"}),
		tracksDemuxed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "usm",
			Name:      "tracks_demuxed_total",
			Help:      "Number of elementary-stream tracks demuxed, by track kind.",
		}, []string{"kind"}),
		bytesWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "usm",
			Name:      "bytes_written_total",
			Help:      "Number of elementary-stream bytes written to disk, by track kind.",
		}, []string{"kind"}),
		demuxErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "usm",
			Name:      "demux_errors_total",
			Help:      "Number of demux errors encountered, by track kind.",
		}, []string{"kind"}),
	}
}

func (r *PromRecorder) ObserveChunkParsed(kind string)  { r.chunksParsed.WithLabelValues(kind).Inc() }
func (r *PromRecorder) ObserveTrackDemuxed(kind string) { r.tracksDemuxed.WithLabelValues(kind).Inc() }
func (r *PromRecorder) ObserveBytesWritten(kind string, n uint64) {
	r.bytesWritten.WithLabelValues(kind).Add(float64(n))
}
func (r *PromRecorder) ObserveDemuxError(kind string) { r.demuxErrors.WithLabelValues(kind).Inc() }

// Handler returns an http.Handler serving this recorder's metrics in the
// Prometheus exposition format.
func (r *PromRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
