// Package media defines the decoder boundary the frame loader consumes.
//
// A Decoder is a stateful handle onto one media source: it can be seeked to
// a position and asked for the next decoded frame. Decode and seek are
// possibly slow and possibly failing operations; the loader treats them as
// opaque. Implementations live in subpackages (gst for GStreamer, mediatest
// for the scripted in-memory source used by tests).
package media

import (
	"context"

	"github.com/egnor/video-play/pkg/timeline"
)

// RawImage is one decoded picture as produced by a decoder, before GPU
// import. Pixels are packed rows of Stride bytes each.
type RawImage struct {
	Width  int
	Height int
	Stride int
	Format string // fourcc-style pixel format name, e.g. "RGBA"
	Pixels []byte
}

// Frame is one decoded frame with its display time range.
//
// Time is half-open: the frame is on screen for [Time.Begin, Time.End).
type Frame struct {
	Time     timeline.Interval
	Image    RawImage
	KeyFrame bool
	Corrupt  bool
}

// Info describes a media source's streams, as far as the container reports
// them. Zero fields mean "unknown".
type Info struct {
	Container   string
	Codec       string
	PixelFormat string
	Duration    timeline.Seconds
	FrameRate   float64
	FrameCount  int64
	BitRate     int64
	Width       int
	Height      int
}

// Decoder is a stateful handle onto one media source.
//
// A decoder has an implicit current read position which is not queryable;
// callers that care (the loader's decoder pool) track it themselves from the
// times of the frames they pull.
//
// Decoders are not safe for concurrent use. Close releases the underlying
// resources and is idempotent.
type Decoder interface {
	// Info returns stream metadata for the source.
	Info() Info

	// SeekBefore positions the decoder so the next frame pulled covers t,
	// or is the nearest decodable frame before it (implementations may land
	// on the preceding keyframe). Failures are reported as *DecodeError.
	SeekBefore(t timeline.Seconds) error

	// NextFrame decodes and returns the next frame. It returns (nil, nil)
	// at end of stream; that is not an error. Failures are reported as
	// *DecodeError.
	NextFrame(ctx context.Context) (*Frame, error)

	// Close releases decoder resources.
	Close() error
}

// Opener constructs a decoder for a source identifier (a file path or URL).
// Failures are reported as *OpenError.
type Opener func(ctx context.Context, source string) (Decoder, error)
