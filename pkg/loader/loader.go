// Package loader implements asynchronous preloading of video frames.
//
// A Loader is bound to one media source and one image loader. Consumers
// declare the union of time ranges they currently care about with
// SetRequest; a background worker decodes exactly the missing portions,
// imports them into display memory, and commits them to a bounded cache.
// Content outside the requested ranges is evicted synchronously when the
// request changes, so cache memory never outlives the requested footprint.
//
// Loaded returns a consistent snapshot of the cache at any time. Decode,
// seek and import failures are never propagated to callers; they are
// converted into cache state (coverage or end-of-stream) so the worker can
// never spin retrying a broken source.
package loader

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/display"
	"github.com/egnor/video-play/pkg/media"
	"github.com/egnor/video-play/pkg/timeline"
)

// Frame is one cached frame in a Loaded snapshot.
type Frame struct {
	Start timeline.Seconds
	Image *display.Image
}

// Loaded is a consistent snapshot of a loader's cache.
//
// Frames are in ascending Start order, one entry per fully loaded frame.
// Done describes exactly which time is backed by valid content; not every
// Done sub-range has a literal frame boundary at its edges, because frames
// that only partially overlap the request are counted as covered without
// being cached. EOF, when non-nil, means no content exists at or past that
// time in the source.
//
// Each Frame holds one reference to its image; call Release when the
// snapshot is no longer needed.
type Loaded struct {
	Frames []Frame
	Done   timeline.IntervalSet
	EOF    *timeline.Seconds
}

// FrameAt returns the cached frame whose start is the greatest not
// exceeding t, or nil if no such frame exists.
func (ld *Loaded) FrameAt(t timeline.Seconds) *Frame {
	i := sort.Search(len(ld.Frames), func(k int) bool { return ld.Frames[k].Start > t })
	if i == 0 {
		return nil
	}
	return &ld.Frames[i-1]
}

// Release drops the snapshot's image references. The images stay valid for
// any other holder (the cache, other snapshots).
func (ld *Loaded) Release() {
	for _, f := range ld.Frames {
		f.Image.Release()
	}
	ld.Frames = nil
}

// pooledDecoder is an idle decoder keyed by its tracked read position. The
// position is bookkeeping only; decoders cannot report it themselves.
type pooledDecoder struct {
	pos timeline.Seconds
	dec media.Decoder
}

type cachedFrame struct {
	start timeline.Seconds
	image *display.Image
}

// Option configures a Loader.
type Option func(*Loader)

// WithMetrics attaches a metrics sink. Pass nil for zero overhead.
func WithMetrics(m Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithFetchTimeout bounds each seek+decode+import sequence. Zero means no
// timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) { l.fetchTimeout = d }
}

// Loader preloads and caches frames from one media source.
//
// SetRequest and Loaded are safe for concurrent use and return quickly,
// bounded by lock hold time only; the lock is never held across a decode,
// seek or import call.
type Loader struct {
	source       string
	opener       media.Opener
	images       display.ImageLoader
	metrics      Metrics
	fetchTimeout time.Duration

	wake       *Signal
	workerDone chan struct{}

	mu       sync.Mutex
	wanted   timeline.IntervalSet
	notify   *Signal
	frames   []cachedFrame // ascending by start
	done     timeline.IntervalSet
	eof      *timeline.Seconds
	shutdown bool
	closed   bool
}

// New creates a loader bound to one media source and one image loader, and
// starts its background worker. The worker idles until the first request.
func New(source string, opener media.Opener, images display.ImageLoader, opts ...Option) *Loader {
	l := &Loader{
		source:     source,
		opener:     opener,
		images:     images,
		wake:       NewSignal(),
		workerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.worker()
	return l
}

// Source returns the media source identifier this loader is bound to.
func (l *Loader) Source() string {
	return l.source
}

// SetRequest replaces the set of time ranges to keep loaded, and the signal
// to set after any cache change (may be nil).
//
// If wanted equals the current request this is a cheap no-op. Otherwise all
// cached content outside wanted is evicted before the call returns, so the
// cache footprint is bounded immediately regardless of worker scheduling;
// the worker is then woken to fetch whatever is newly missing.
func (l *Loader) SetRequest(wanted timeline.IntervalSet, notify *Signal) {
	l.mu.Lock()
	l.notify = notify

	if wanted.Equal(l.wanted) {
		l.mu.Unlock()
		logger.Debug("Request unchanged", logger.KeyMedia, l.source,
			logger.KeyWanted, wanted.String())
		return
	}

	obsolete := l.done.Copy()
	obsolete.EraseSet(wanted)
	evicted := 0
	for _, er := range obsolete.Intervals() {
		l.done.Erase(er)
		evicted += l.evictFrames(er)
	}
	if evicted > 0 && l.metrics != nil {
		l.metrics.RecordFramesEvicted(evicted)
	}

	l.wanted = wanted.Copy()
	l.mu.Unlock()

	logger.Debug("Request updated", logger.KeyMedia, l.source,
		logger.KeyWanted, wanted.String(), "evicted", evicted)
	l.wake.Set()
}

// Loaded returns an atomic snapshot of the cache. The snapshot shares image
// handles with the cache (cheap copies, not pixel copies) and never shows a
// partially applied mutation. Call Release on the result when done.
func (l *Loader) Loaded() Loaded {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Loaded{Done: l.done.Copy()}
	if l.eof != nil {
		e := *l.eof
		out.EOF = &e
	}
	out.Frames = make([]Frame, len(l.frames))
	for i, cf := range l.frames {
		out.Frames[i] = Frame{Start: cf.start, Image: cf.image.Retain()}
	}
	return out
}

// Close requests worker shutdown and waits for it to exit, then releases
// the cache. Shutdown is cooperative: an in-flight fetch is allowed to
// finish first. Idempotent.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.shutdown = true
	l.mu.Unlock()

	logger.Debug("Stopping loader worker", logger.KeyMedia, l.source)
	l.wake.Set()
	<-l.workerDone

	l.mu.Lock()
	for _, cf := range l.frames {
		cf.image.Release()
	}
	l.frames = nil
	l.done = timeline.IntervalSet{}
	l.mu.Unlock()
}

// evictFrames releases and removes every cached frame whose start falls in
// iv. Called with the lock held.
func (l *Loader) evictFrames(iv timeline.Interval) int {
	lo := sort.Search(len(l.frames), func(i int) bool { return l.frames[i].start >= iv.Begin })
	hi := sort.Search(len(l.frames), func(i int) bool { return l.frames[i].start >= iv.End })
	for i := lo; i < hi; i++ {
		l.frames[i].image.Release()
	}
	l.frames = slices.Delete(l.frames, lo, hi)
	return hi - lo
}

// storeFrame commits an image under its start time. Called with the lock
// held.
func (l *Loader) storeFrame(start timeline.Seconds, image *display.Image) {
	i := sort.Search(len(l.frames), func(k int) bool { return l.frames[k].start >= start })
	if i < len(l.frames) && l.frames[i].start == start {
		l.frames[i].image.Release()
		l.frames[i].image = image
		return
	}
	l.frames = slices.Insert(l.frames, i, cachedFrame{start: start, image: image})
}

// worker is the loader's single background goroutine. Each pass partitions
// the decoder pool, computes the deficit against the cache, fetches missing
// ranges one frame at a time, and commits the results. It blocks on the
// wake signal only when nothing is needed.
func (l *Loader) worker() {
	defer close(l.workerDone)
	logger.Debug("Loader worker running", logger.KeyMedia, l.source)

	var pool []pooledDecoder // ascending by tracked position

	l.mu.Lock()
	for !l.shutdown {
		// Keep decoders parked exactly at a wanted interval's end; they can
		// extend that interval forward with no seek.
		var keep []pooledDecoder
		for _, want := range l.wanted.Intervals() {
			if i, ok := poolFind(pool, want.End); ok {
				keep = poolAdd(keep, pool[i])
				pool = slices.Delete(pool, i, i+1)
			}
		}

		// Ranges that are requested, not yet cached, and not past known EOF.
		needed := l.wanted.Copy()
		if l.eof != nil {
			needed.Erase(timeline.Interval{Begin: *l.eof, End: timeline.Forever})
		}
		needed.EraseSet(l.done)

		if needed.Empty() {
			dropped := closeDecoders(pool)
			pool = keep
			l.mu.Unlock()
			if dropped > 0 {
				logger.Debug("Dropped idle decoders", logger.KeyMedia, l.source,
					logger.KeyDecoders, dropped)
				if l.metrics != nil {
					l.metrics.RecordDecodersDropped(dropped)
				}
			}
			l.wake.Wait()
			l.mu.Lock()
			continue
		}

		logger.Debug("Load pass starting", logger.KeyMedia, l.source,
			logger.KeyNeeded, needed.String())
		passStart := time.Now()
		changes := 0
		for _, need := range needed.Intervals() {
			// Reuse the decoder with the greatest tracked position at or
			// before the interval start, or open a fresh one.
			var dec media.Decoder
			var pos timeline.Seconds
			if i, ok := poolNearest(pool, need.Begin); ok {
				pos, dec = pool[i].pos, pool[i].dec
				pool = slices.Delete(pool, i, i+1)
				if l.metrics != nil {
					l.metrics.RecordDecoderReuse()
				}
			} else {
				opened, err := l.opener(context.Background(), l.source)
				if err != nil {
					logger.Error("Failed to open media", logger.KeyMedia, l.source,
						logger.KeyInterval, need.String(), logger.KeyError, err)
					// Pretend the range loaded so it is not retried every pass.
					l.done.Insert(need)
					changes++
					if l.metrics != nil {
						l.metrics.RecordOpenError()
					}
					continue
				}
				dec, pos = opened, 0
				if l.metrics != nil {
					l.metrics.RecordDecoderOpen()
				}
			}

			// Unlock, seek as needed and read one frame.
			l.mu.Unlock()
			frame, image, newPos, err := l.fetch(dec, pos, need.Begin)
			pos = newPos
			if err != nil {
				logger.Error("Media fetch failed", logger.KeyMedia, l.source,
					logger.KeyInterval, need.String(), logger.KeyError, err)
				// Treated as end of stream below.
				frame, image = nil, nil
				if l.metrics != nil {
					l.metrics.RecordDecodeError()
				}
			}

			// Re-lock and check the frame against wanted, which may have
			// changed while unlocked.
			l.mu.Lock()

			if frame == nil {
				if l.eof == nil || need.Begin < *l.eof {
					e := need.Begin
					l.eof = &e
					l.wanted.Erase(timeline.Interval{Begin: e, End: timeline.Forever})
					changes++
					logger.Debug("End of stream", logger.KeyMedia, l.source,
						logger.KeyEOF, e.String())
				}
			} else {
				i := l.wanted.OverlapBegin(need.Begin)
				switch {
				case i == l.wanted.OverlapEnd(frame.Time.End):
					// The frame's range no longer intersects the request.
					logger.Debug("Discarding obsolete frame", logger.KeyMedia, l.source,
						logger.KeyFrame, frame.Time.String())
					image.Release()
					if l.metrics != nil {
						l.metrics.RecordFrameObsolete()
					}
				case l.wanted.At(i).Begin > frame.Time.Begin:
					// The frame extends before what is now wanted: count the
					// intersected tail as covered, but do not cache the image.
					l.done.Insert(timeline.Interval{
						Begin: l.wanted.At(i).Begin, End: frame.Time.End,
					})
					image.Release()
					changes++
					if l.metrics != nil {
						l.metrics.RecordFramePartial()
					}
				default:
					l.done.Insert(frame.Time)
					l.storeFrame(frame.Time.Begin, image)
					changes++
					if l.metrics != nil {
						l.metrics.RecordFrameLoaded()
					}
				}
			}

			// Return the decoder, with its updated position, for the next pass.
			keep = poolAdd(keep, pooledDecoder{pos: pos, dec: dec})
		}

		dropped := closeDecoders(pool)
		pool = keep
		if dropped > 0 {
			logger.Debug("Dropped idle decoders", logger.KeyMedia, l.source,
				logger.KeyDecoders, dropped)
			if l.metrics != nil {
				l.metrics.RecordDecodersDropped(dropped)
			}
		}
		if l.metrics != nil {
			l.metrics.ObservePass(time.Since(passStart))
		}
		logger.Debug("Load pass done", logger.KeyMedia, l.source,
			logger.KeyChanges, changes, logger.KeyDone, l.done.String())
		if changes > 0 && l.notify != nil {
			l.notify.Set()
		}
	}
	closeDecoders(pool)
	l.mu.Unlock()
	logger.Debug("Loader worker exiting", logger.KeyMedia, l.source)
}

// fetch seeks the decoder to start if its tracked position differs, pulls
// one frame and imports it. Runs without the cache lock. Returns the frame
// and image (both nil at end of stream) plus the decoder's new position.
func (l *Loader) fetch(dec media.Decoder, pos, start timeline.Seconds) (*media.Frame, *display.Image, timeline.Seconds, error) {
	ctx := context.Background()
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	if start != pos {
		if err := dec.SeekBefore(start); err != nil {
			return nil, nil, pos, err
		}
		pos = start
	}

	frame, err := dec.NextFrame(ctx)
	if err != nil {
		return nil, nil, pos, err
	}
	if frame == nil {
		return nil, nil, pos, nil
	}

	image, err := l.images.LoadImage(ctx, frame.Image)
	if err != nil {
		return nil, nil, pos, err
	}
	return frame, image, max(pos, frame.Time.End), nil
}

// poolFind returns the index of the decoder tracked exactly at pos.
func poolFind(pool []pooledDecoder, pos timeline.Seconds) (int, bool) {
	i := sort.Search(len(pool), func(k int) bool { return pool[k].pos >= pos })
	if i < len(pool) && pool[i].pos == pos {
		return i, true
	}
	return 0, false
}

// poolNearest returns the decoder with the greatest tracked position not
// exceeding t, minimizing seek distance. If every pooled decoder sits past
// t the lowest-positioned one is returned anyway (a seek fixes it up);
// false only when the pool is empty.
func poolNearest(pool []pooledDecoder, t timeline.Seconds) (int, bool) {
	if len(pool) == 0 {
		return 0, false
	}
	i := sort.Search(len(pool), func(k int) bool { return pool[k].pos > t })
	if i > 0 {
		i--
	}
	return i, true
}

// poolAdd inserts a decoder keeping position order. If one is already
// parked at the same position the new arrival is redundant and closed.
func poolAdd(pool []pooledDecoder, pd pooledDecoder) []pooledDecoder {
	i := sort.Search(len(pool), func(k int) bool { return pool[k].pos >= pd.pos })
	if i < len(pool) && pool[i].pos == pd.pos {
		_ = pd.dec.Close()
		return pool
	}
	return slices.Insert(pool, i, pd)
}

// closeDecoders releases every decoder in the slice and returns how many.
func closeDecoders(pool []pooledDecoder) int {
	for _, pd := range pool {
		_ = pd.dec.Close()
	}
	return len(pool)
}
