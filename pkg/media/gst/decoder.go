// Package gst implements the media decoder boundary on GStreamer.
//
// Each decoder owns one pipeline: uridecodebin → videoconvert → capsfilter
// (RGBA) → appsink, pulled synchronously one sample at a time. SeekBefore
// issues a flushing keyframe seek, which lands at or before the requested
// time, exactly what the frame loader's position bookkeeping expects.
package gst

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/media"
	"github.com/egnor/video-play/pkg/timeline"
)

// Opener returns a media.Opener backed by GStreamer.
func Opener() media.Opener {
	return func(ctx context.Context, source string) (media.Decoder, error) {
		dec, err := open(source)
		if err != nil {
			return nil, &media.OpenError{Source: source, Err: err}
		}
		return dec, nil
	}
}

type decoder struct {
	source   string
	pipeline *gst.Pipeline
	sink     *app.Sink
	info     media.Info
	closed   bool
}

func open(source string) (*decoder, error) {
	gst.Init(nil)

	uri, err := sourceURI(source)
	if err != nil {
		return nil, err
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("uridecodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create uridecodebin: %w", err)
	}
	src.SetProperty("uri", uri)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGBA"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false) // pull as fast as decode allows
	appsink.SetProperty("max-buffers", 1)

	pipeline.AddMany(src, converter, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(converter, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	// uridecodebin exposes its pads only after stream discovery.
	src.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		sinkPad := converter.GetStaticPad("sink")
		if sinkPad == nil || sinkPad.IsLinked() {
			return
		}
		if ret := pad.Link(sinkPad); ret != gst.PadLinkOK {
			logger.Warn("Failed to link decoded pad", logger.KeyMedia, source,
				"link_result", int(ret))
		}
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	d := &decoder{source: source, pipeline: pipeline, sink: appsink}
	d.info = d.queryInfo()
	return d, nil
}

// sourceURI turns a path or URL into the URI form uridecodebin expects.
func sourceURI(source string) (string, error) {
	if strings.Contains(source, "://") {
		return source, nil
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media path %q: %w", source, err)
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

func (d *decoder) queryInfo() media.Info {
	info := media.Info{Container: "gstreamer", PixelFormat: "RGBA"}
	if dur, ok := d.pipeline.QueryDuration(gst.FormatTime); ok && dur > 0 {
		info.Duration = timeline.Seconds(time.Duration(dur).Seconds())
	}
	return info
}

func (d *decoder) Info() media.Info {
	return d.info
}

// SeekBefore issues a flushing keyframe seek. GStreamer snaps to the
// nearest keyframe at or before the target, so the next pulled frame may
// begin earlier than t but never after it.
func (d *decoder) SeekBefore(t timeline.Seconds) error {
	target := time.Duration(float64(t) * float64(time.Second))
	if ok := d.pipeline.SeekTime(target, gst.SeekFlagFlush|gst.SeekFlagKeyUnit); !ok {
		return &media.DecodeError{
			Source: d.source, Op: "seek",
			Err: fmt.Errorf("seek to %s rejected", t),
		}
	}
	return nil
}

func (d *decoder) NextFrame(ctx context.Context) (*media.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, &media.DecodeError{Source: d.source, Op: "decode", Err: err}
	}

	sample := d.sink.PullSample()
	if sample == nil {
		if d.sink.IsEOS() {
			return nil, nil
		}
		return nil, &media.DecodeError{
			Source: d.source, Op: "decode",
			Err: fmt.Errorf("appsink returned no sample"),
		}
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, &media.DecodeError{
			Source: d.source, Op: "decode",
			Err: fmt.Errorf("sample has no buffer"),
		}
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	pixels := make([]byte, len(data))
	copy(pixels, data) // GStreamer reuses the buffer after unmap
	buffer.Unmap()

	width, height := sampleDimensions(sample)
	begin := timeline.Seconds(time.Duration(buffer.PresentationTimestamp()).Seconds())
	dur := timeline.Seconds(time.Duration(buffer.Duration()).Seconds())
	if dur <= 0 {
		// Containers without per-frame durations; fall back to a nominal
		// frame so the interval stays half-open and non-empty.
		dur = timeline.Seconds(1.0 / 30.0)
	}

	stride := 0
	if height > 0 {
		stride = len(pixels) / height
	}

	return &media.Frame{
		Time: timeline.Interval{Begin: begin, End: begin + dur},
		Image: media.RawImage{
			Width: width, Height: height, Stride: stride,
			Format: "RGBA", Pixels: pixels,
		},
	}, nil
}

// sampleDimensions reads width/height out of the sample's negotiated caps.
func sampleDimensions(sample *gst.Sample) (int, int) {
	caps := sample.GetCaps()
	if caps == nil {
		return 0, 0
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0
	}
	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, _ := width.(int)
	h, _ := height.(int)
	return w, h
}

func (d *decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to stop pipeline: %w", err)
	}
	return nil
}
