package loader

import "time"

// Metrics provides observability for one or more frame loaders.
//
// This interface is optional - pass nil (via WithMetrics) to disable
// metrics collection with zero overhead. The Prometheus implementation
// lives in pkg/metrics to keep this package dependency-free.
type Metrics interface {
	// ObservePass records one completed worker pass over the needed set.
	ObservePass(duration time.Duration)

	// RecordFrameLoaded records a frame committed into the cache.
	RecordFrameLoaded()

	// RecordFrameObsolete records a decoded frame discarded because the
	// request set changed while it was in flight.
	RecordFrameObsolete()

	// RecordFramePartial records a frame accounted as coverage but not
	// cached (its start precedes the wanted window).
	RecordFramePartial()

	// RecordFramesEvicted records cache entries removed by a request change.
	RecordFramesEvicted(count int)

	// RecordDecoderOpen records a fresh decoder construction.
	RecordDecoderOpen()

	// RecordDecoderReuse records a pooled decoder picked up for a fetch.
	RecordDecoderReuse()

	// RecordDecodersDropped records pooled decoders released at the end of
	// a pass.
	RecordDecodersDropped(count int)

	// RecordOpenError records a decoder construction failure.
	RecordOpenError()

	// RecordDecodeError records a seek/decode/import failure.
	RecordDecodeError()
}
