package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/egnor/video-play/pkg/loader"
)

// loaderMetrics is the Prometheus implementation of loader.Metrics.
type loaderMetrics struct {
	passes          prometheus.Counter
	passDuration    prometheus.Histogram
	framesLoaded    prometheus.Counter
	framesObsolete  prometheus.Counter
	framesPartial   prometheus.Counter
	framesEvicted   prometheus.Counter
	decoderOpens    prometheus.Counter
	decoderReuses   prometheus.Counter
	decodersDropped prometheus.Counter
	openErrors      prometheus.Counter
	decodeErrors    prometheus.Counter
}

// NewLoaderMetrics creates a Prometheus-backed loader.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); the
// loader treats a nil sink as "no metrics" with zero overhead.
func NewLoaderMetrics() loader.Metrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &loaderMetrics{
		passes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_passes_total",
			Help: "Total number of completed loader worker passes",
		}),
		passDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "videoplay_loader_pass_duration_seconds",
			Help:    "Duration of loader worker passes",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		}),
		framesLoaded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_frames_loaded_total",
			Help: "Total number of frames committed into loader caches",
		}),
		framesObsolete: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_frames_obsolete_total",
			Help: "Total number of decoded frames discarded because the request changed in flight",
		}),
		framesPartial: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_frames_partial_total",
			Help: "Total number of frames counted as coverage but not cached (partial overlap)",
		}),
		framesEvicted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_frames_evicted_total",
			Help: "Total number of cached frames evicted by request changes",
		}),
		decoderOpens: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_decoder_opens_total",
			Help: "Total number of fresh decoder constructions",
		}),
		decoderReuses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_decoder_reuses_total",
			Help: "Total number of pooled decoders reused for a fetch",
		}),
		decodersDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_decoders_dropped_total",
			Help: "Total number of idle decoders released from loader pools",
		}),
		openErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_open_errors_total",
			Help: "Total number of decoder construction failures",
		}),
		decodeErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "videoplay_loader_decode_errors_total",
			Help: "Total number of seek, decode or import failures",
		}),
	}
}

func (m *loaderMetrics) ObservePass(duration time.Duration) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.passDuration.Observe(duration.Seconds())
}

func (m *loaderMetrics) RecordFrameLoaded() {
	if m == nil {
		return
	}
	m.framesLoaded.Inc()
}

func (m *loaderMetrics) RecordFrameObsolete() {
	if m == nil {
		return
	}
	m.framesObsolete.Inc()
}

func (m *loaderMetrics) RecordFramePartial() {
	if m == nil {
		return
	}
	m.framesPartial.Inc()
}

func (m *loaderMetrics) RecordFramesEvicted(count int) {
	if m == nil {
		return
	}
	m.framesEvicted.Add(float64(count))
}

func (m *loaderMetrics) RecordDecoderOpen() {
	if m == nil {
		return
	}
	m.decoderOpens.Inc()
}

func (m *loaderMetrics) RecordDecoderReuse() {
	if m == nil {
		return
	}
	m.decoderReuses.Inc()
}

func (m *loaderMetrics) RecordDecodersDropped(count int) {
	if m == nil {
		return
	}
	m.decodersDropped.Add(float64(count))
}

func (m *loaderMetrics) RecordOpenError() {
	if m == nil {
		return
	}
	m.openErrors.Inc()
}

func (m *loaderMetrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}
