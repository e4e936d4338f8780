// Package mediatest provides a scripted in-memory media source for tests
// and demos. Frames are synthesized at a fixed cadence with tiny solid
// images, and open/seek/decode failures can be injected per source.
package mediatest

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/egnor/video-play/pkg/media"
	"github.com/egnor/video-play/pkg/timeline"
)

// errScripted is the cause carried by injected decode failures.
var errScripted = errors.New("scripted decode failure")

// Source scripts the behavior of a fake media file.
//
// The zero value is not usable; set at least FrameDuration and EOF. All
// counters are updated atomically, so assertions can run while a loader
// worker is still active.
type Source struct {
	// FrameDuration is the display time of every synthesized frame.
	FrameDuration timeline.Seconds

	// EOF is where content ends; decoding at or past it yields end of
	// stream. Use timeline.Forever for an endless source.
	EOF timeline.Seconds

	// Width and Height size the synthesized images (default 8x8).
	Width, Height int

	// OpenErr, when non-nil, makes every open attempt fail with it.
	OpenErr error

	// SeekErr, when non-nil, makes every seek fail with it.
	SeekErr error

	// DecodeErrAt, when non-nil, makes reads positioned at or past this
	// time fail with a decode error instead of returning a frame.
	DecodeErrAt *timeline.Seconds

	// OnRead, when set, runs at the start of every frame read with the
	// decoder's current position. It runs outside any loader lock, so
	// tests can mutate requests mid-fetch to exercise the obsolete and
	// partial-overlap paths.
	OnRead func(pos timeline.Seconds)

	opens atomic.Int64
	seeks atomic.Int64
	reads atomic.Int64

	mu   sync.Mutex
	live int // decoders opened and not yet closed
}

// Opener returns a media.Opener serving decoders for this source.
func (s *Source) Opener() media.Opener {
	return func(ctx context.Context, source string) (media.Decoder, error) {
		s.opens.Add(1)
		if s.OpenErr != nil {
			return nil, &media.OpenError{Source: source, Err: s.OpenErr}
		}
		s.mu.Lock()
		s.live++
		s.mu.Unlock()
		return &decoder{src: s, name: source}, nil
	}
}

// Opens returns the number of open attempts so far.
func (s *Source) Opens() int64 { return s.opens.Load() }

// Seeks returns the number of seek calls so far.
func (s *Source) Seeks() int64 { return s.seeks.Load() }

// Reads returns the number of frame read calls so far.
func (s *Source) Reads() int64 { return s.reads.Load() }

// Live returns the number of decoders opened and not yet closed.
func (s *Source) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Source) width() int {
	if s.Width > 0 {
		return s.Width
	}
	return 8
}

func (s *Source) height() int {
	if s.Height > 0 {
		return s.Height
	}
	return 8
}

type decoder struct {
	src    *Source
	name   string
	pos    timeline.Seconds
	closed bool
}

func (d *decoder) Info() media.Info {
	info := media.Info{
		Container:   "fake",
		Codec:       "synthetic",
		PixelFormat: "RGBA",
		FrameRate:   1 / float64(d.src.FrameDuration),
		Width:       d.src.width(),
		Height:      d.src.height(),
	}
	if d.src.EOF != timeline.Forever {
		info.Duration = d.src.EOF
		info.FrameCount = int64(math.Ceil(float64(d.src.EOF / d.src.FrameDuration)))
	}
	return info
}

// SeekBefore lands on the frame boundary at or before t, like a keyframe
// seek would.
func (d *decoder) SeekBefore(t timeline.Seconds) error {
	d.src.seeks.Add(1)
	if d.src.SeekErr != nil {
		return &media.DecodeError{Source: d.name, Op: "seek", Err: d.src.SeekErr}
	}
	d.pos = timeline.Seconds(math.Floor(float64(t/d.src.FrameDuration))) * d.src.FrameDuration
	return nil
}

func (d *decoder) NextFrame(ctx context.Context) (*media.Frame, error) {
	d.src.reads.Add(1)
	if hook := d.src.OnRead; hook != nil {
		hook(d.pos)
	}
	if err := ctx.Err(); err != nil {
		return nil, &media.DecodeError{Source: d.name, Op: "decode", Err: err}
	}
	if at := d.src.DecodeErrAt; at != nil && d.pos >= *at {
		return nil, &media.DecodeError{Source: d.name, Op: "decode", Err: errScripted}
	}
	if d.pos >= d.src.EOF {
		return nil, nil
	}

	w, h := d.src.width(), d.src.height()
	pixels := make([]byte, w*h*4)
	// Shade encodes the frame time so tests can tell frames apart.
	shade := byte(int(d.pos/d.src.FrameDuration) % 256)
	for i := range pixels {
		pixels[i] = shade
	}

	frame := &media.Frame{
		Time: timeline.Interval{Begin: d.pos, End: d.pos + d.src.FrameDuration},
		Image: media.RawImage{
			Width: w, Height: h, Stride: w * 4, Format: "RGBA", Pixels: pixels,
		},
		KeyFrame: true,
	}
	d.pos += d.src.FrameDuration
	return frame, nil
}

func (d *decoder) Close() error {
	if !d.closed {
		d.closed = true
		d.src.mu.Lock()
		d.src.live--
		d.src.mu.Unlock()
	}
	return nil
}
