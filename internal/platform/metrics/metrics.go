package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the HLS relay.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	errorsTotal       prometheus.Counter
	playlistsTotal    prometheus.Counter
	variantsDropped   prometheus.Counter
	tracksDropped     prometheus.Counter
	segmentBytesTotal prometheus.Counter
	upstreamErrors    prometheus.Counter
	activeSegments    prometheus.Gauge
}

// New creates and registers the relay metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsproxy_requests_total",
		Help: "Total number of HTTP requests received, by resource kind",
	}, []string{"kind"})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsproxy_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	playlistsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsproxy_playlists_rewritten_total",
		Help: "Total number of manifests rewritten",
	})
	variantsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsproxy_variants_dropped_total",
		Help: "Total number of master manifest variants dropped by the variant limit",
	})
	tracksDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsproxy_tracks_dropped_total",
		Help: "Total number of renditions dropped by the track filter",
	})
	segmentBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsproxy_segment_bytes_total",
		Help: "Total number of segment bytes streamed to players",
	})
	upstreamErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsproxy_upstream_errors_total",
		Help: "Total number of failed upstream fetches",
	})
	activeSegments := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hlsproxy_active_segment_streams",
		Help: "Number of segment bodies currently being streamed",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		playlistsTotal,
		variantsDropped,
		tracksDropped,
		segmentBytesTotal,
		upstreamErrors,
		activeSegments,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		playlistsTotal:    playlistsTotal,
		variantsDropped:   variantsDropped,
		tracksDropped:     tracksDropped,
		segmentBytesTotal: segmentBytesTotal,
		upstreamErrors:    upstreamErrors,
		activeSegments:    activeSegments,
	}
}

// IncRequests increments the request counter for kind. Anything other than
// "playlist" or "segment" is recorded as "auto" to bound label cardinality.
func (m *Metrics) IncRequests(kind string) {
	switch kind = strings.ToLower(kind); kind {
	case "playlist", "segment":
	default:
		kind = "auto"
	}
	m.requestsTotal.WithLabelValues(kind).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObservePlaylist records one rewritten manifest.
func (m *Metrics) ObservePlaylist(droppedVariants, droppedTracks int) {
	m.playlistsTotal.Inc()
	m.variantsDropped.Add(float64(droppedVariants))
	m.tracksDropped.Add(float64(droppedTracks))
}

// AddSegmentBytes adds n streamed segment bytes.
func (m *Metrics) AddSegmentBytes(n int64) {
	m.segmentBytesTotal.Add(float64(n))
}

// IncUpstreamErrors increments the upstream failure counter.
func (m *Metrics) IncUpstreamErrors() {
	m.upstreamErrors.Inc()
}

// SegmentStarted and SegmentDone track in-flight segment streams.
func (m *Metrics) SegmentStarted() { m.activeSegments.Inc() }

func (m *Metrics) SegmentDone() { m.activeSegments.Dec() }

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
