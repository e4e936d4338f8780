package loader

import (
	"errors"
	"testing"
	"time"

	"github.com/egnor/video-play/pkg/display"
	"github.com/egnor/video-play/pkg/media/mediatest"
	"github.com/egnor/video-play/pkg/timeline"
)

// ============================================================================
// Test Helpers
// ============================================================================

// frameDur keeps frame arithmetic exact in float64.
const frameDur = timeline.Seconds(0.25)

func newTestSource(eof timeline.Seconds) *mediatest.Source {
	return &mediatest.Source{FrameDuration: frameDur, EOF: eof}
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitDone waits until the loader's coverage equals want.
func waitDone(t *testing.T, l *Loader, want timeline.IntervalSet) {
	t.Helper()
	waitUntil(t, "coverage "+want.String(), func() bool {
		snap := l.Loaded()
		defer snap.Release()
		return snap.Done.Equal(want)
	})
}

func ival(begin, end timeline.Seconds) timeline.Interval {
	return timeline.Interval{Begin: begin, End: end}
}

func frameStarts(snap Loaded) []timeline.Seconds {
	starts := make([]timeline.Seconds, len(snap.Frames))
	for i, f := range snap.Frames {
		starts[i] = f.Start
	}
	return starts
}

// ============================================================================
// Basic Loading
// ============================================================================

func TestLoader_LoadsRequestedRange(t *testing.T) {
	src := newTestSource(100)
	images := display.NewMemoryLoader()
	l := New("test.fake", src.Opener(), images)
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	snap := l.Loaded()
	defer snap.Release()

	want := []timeline.Seconds{0, 0.25, 0.5, 0.75}
	starts := frameStarts(snap)
	if len(starts) != len(want) {
		t.Fatalf("got frames at %v, want %v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("got frames at %v, want %v", starts, want)
		}
	}
	if snap.EOF != nil {
		t.Errorf("EOF = %v, want nil (stream end never reached)", *snap.EOF)
	}
}

func TestLoader_FrameAt(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	snap := l.Loaded()
	defer snap.Release()

	if f := snap.FrameAt(-0.1); f != nil {
		t.Errorf("FrameAt before first frame = %v, want nil", f.Start)
	}
	if f := snap.FrameAt(0); f == nil || f.Start != 0 {
		t.Errorf("FrameAt(0) = %v, want frame at 0", f)
	}
	if f := snap.FrameAt(0.3); f == nil || f.Start != 0.25 {
		t.Errorf("FrameAt(0.3) = %v, want frame at 0.25", f)
	}
	if f := snap.FrameAt(99); f == nil || f.Start != 0.75 {
		t.Errorf("FrameAt(99) = %v, want last frame at 0.75", f)
	}
}

func TestLoader_IdlesWhenCaughtUp(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.5)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 0.5)))

	// With nothing needed the worker must block, not poll the decoder.
	before := src.Reads()
	time.Sleep(50 * time.Millisecond)
	if after := src.Reads(); after != before {
		t.Errorf("worker kept decoding while idle: %d reads before, %d after", before, after)
	}
}

func TestLoader_NotifySignal(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	notify := NewSignal()
	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.5)), notify)

	select {
	case <-notify.Chan():
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after cache change")
	}
}

func TestLoader_IdenticalRequestIsNoop(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	req := timeline.NewIntervalSet(ival(0, 0.5))
	l.SetRequest(req, nil)
	waitDone(t, l, req)

	opens := src.Opens()
	l.SetRequest(req.Copy(), nil)
	time.Sleep(30 * time.Millisecond)

	snap := l.Loaded()
	defer snap.Release()
	if !snap.Done.Equal(req) {
		t.Errorf("coverage changed on identical request: %s", snap.Done.String())
	}
	if src.Opens() != opens {
		t.Errorf("identical request reopened the source")
	}
}

func TestLoader_InstancesAreIndependent(t *testing.T) {
	srcA := newTestSource(1)   // short content, ends at 1.0
	srcB := newTestSource(100) // effectively endless
	images := display.NewMemoryLoader()

	a := New("a.fake", srcA.Opener(), images)
	defer a.Close()
	b := New("b.fake", srcB.Opener(), images)
	defer b.Close()

	// Interleave growing requests so both workers run concurrently.
	for i := 1; i <= 4; i++ {
		a.SetRequest(timeline.NewIntervalSet(ival(0, timeline.Seconds(i)*0.5)), nil)
		b.SetRequest(timeline.NewIntervalSet(ival(5, 5+timeline.Seconds(i)*0.125)), nil)
	}
	waitDone(t, a, timeline.NewIntervalSet(ival(0, 1)))
	waitDone(t, b, timeline.NewIntervalSet(ival(5, 5.5)))

	snapA := a.Loaded()
	defer snapA.Release()
	snapB := b.Loaded()
	defer snapB.Release()

	// One loader hitting its stream end must not leak into the other.
	if snapA.EOF == nil || *snapA.EOF != 1 {
		t.Errorf("first loader EOF = %v, want 1", snapA.EOF)
	}
	if snapB.EOF != nil {
		t.Errorf("second loader EOF = %v, want nil", *snapB.EOF)
	}
	if starts := frameStarts(snapA); len(starts) != 4 {
		t.Errorf("first loader frames = %v, want 4 in [0,1)", starts)
	}
	for _, s := range frameStarts(snapA) {
		if s < 0 || s >= 1 {
			t.Errorf("first loader cached frame at %v, outside its own content", s)
		}
	}
	if starts := frameStarts(snapB); len(starts) != 2 {
		t.Errorf("second loader frames = %v, want 2 in [5,5.5)", starts)
	}
	for _, s := range frameStarts(snapB) {
		if s < 5 || s >= 5.5 {
			t.Errorf("second loader cached frame at %v, outside its own request", s)
		}
	}
}

// ============================================================================
// Request Changes and Eviction
// ============================================================================

func TestLoader_EvictsOutsideRequest(t *testing.T) {
	src := newTestSource(100)
	images := display.NewMemoryLoader()
	l := New("test.fake", src.Opener(), images)
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	// Move the request elsewhere: old content must go immediately.
	l.SetRequest(timeline.NewIntervalSet(ival(2, 3)), nil)

	snap := l.Loaded()
	if snap.Done.Contains(0.5) {
		t.Error("coverage of the old range should be dropped synchronously")
	}
	for _, f := range snap.Frames {
		if f.Start < 2 {
			t.Errorf("frame at %v survived eviction", f.Start)
		}
	}
	snap.Release()

	waitDone(t, l, timeline.NewIntervalSet(ival(2, 3)))
}

func TestLoader_ShrinkKeepsInsideContent(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))
	reads := src.Reads()

	// Shrink to a sub-range: inside content stays, nothing is refetched.
	l.SetRequest(timeline.NewIntervalSet(ival(0.25, 0.75)), nil)

	snap := l.Loaded()
	defer snap.Release()
	if !snap.Done.Equal(timeline.NewIntervalSet(ival(0.25, 0.75))) {
		t.Errorf("coverage = %s, want {0.25~0.75}", snap.Done.String())
	}
	starts := frameStarts(snap)
	if len(starts) != 2 || starts[0] != 0.25 || starts[1] != 0.5 {
		t.Errorf("frames = %v, want [0.25 0.5]", starts)
	}

	time.Sleep(30 * time.Millisecond)
	if src.Reads() != reads {
		t.Error("shrinking the request should not trigger decoding")
	}
}

func TestLoader_ReleasesEvictedImages(t *testing.T) {
	src := newTestSource(100)
	images := display.NewMemoryLoader()
	l := New("test.fake", src.Opener(), images)
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.25)), nil)
	waitUntil(t, "evicted images to be freed", func() bool {
		return images.Live() == 1
	})
}

// ============================================================================
// End of Stream
// ============================================================================

func TestLoader_DiscoversEOF(t *testing.T) {
	src := newTestSource(1) // content ends at 1.0
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 2)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	snap := l.Loaded()
	defer snap.Release()
	if snap.EOF == nil || *snap.EOF != 1 {
		t.Fatalf("EOF = %v, want 1", snap.EOF)
	}
	if len(snap.Frames) != 4 {
		t.Errorf("got %d frames, want 4", len(snap.Frames))
	}
}

func TestLoader_NoRetryPastEOF(t *testing.T) {
	src := newTestSource(1)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 2)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	// Requests entirely past EOF must not touch the decoder.
	reads := src.Reads()
	l.SetRequest(timeline.NewIntervalSet(ival(3, 4)), nil)
	time.Sleep(50 * time.Millisecond)
	if src.Reads() != reads {
		t.Error("request past EOF caused decoding")
	}

	snap := l.Loaded()
	defer snap.Release()
	if snap.EOF == nil || *snap.EOF != 1 {
		t.Errorf("EOF = %v, want 1 (EOF is never forgotten)", snap.EOF)
	}
}

func TestLoader_DecodeErrorEndsStream(t *testing.T) {
	src := newTestSource(100)
	bad := timeline.Seconds(0.5)
	src.DecodeErrAt = &bad

	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 0.5)))

	snap := l.Loaded()
	defer snap.Release()
	if snap.EOF == nil || *snap.EOF != 0.5 {
		t.Fatalf("EOF = %v, want 0.5 (decode failure treated as stream end)", snap.EOF)
	}
	starts := frameStarts(snap)
	if len(starts) != 2 || starts[0] != 0 || starts[1] != 0.25 {
		t.Errorf("frames = %v, want [0 0.25]", starts)
	}
}

func TestLoader_EOFOnlyMovesEarlier(t *testing.T) {
	src := newTestSource(1)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0.75, 2)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0.75, 1)))
	waitUntil(t, "stream end at 1", func() bool {
		snap := l.Loaded()
		defer snap.Release()
		return snap.EOF != nil && *snap.EOF == 1
	})

	// A failure earlier in the stream pulls the known end point back.
	bad := timeline.Seconds(0.25)
	src.DecodeErrAt = &bad
	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.5)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 0.25)))

	snap := l.Loaded()
	defer snap.Release()
	if snap.EOF == nil || *snap.EOF != 0.25 {
		t.Fatalf("EOF = %v, want 0.25 (failure before known end moves it earlier)", snap.EOF)
	}
	if starts := frameStarts(snap); len(starts) != 1 || starts[0] != 0 {
		t.Errorf("frames = %v, want [0]", starts)
	}

	// It never moves later again, even for a wider request.
	l.SetRequest(timeline.NewIntervalSet(ival(0, 2)), nil)
	time.Sleep(50 * time.Millisecond)
	snap2 := l.Loaded()
	defer snap2.Release()
	if snap2.EOF == nil || *snap2.EOF != 0.25 {
		t.Errorf("EOF = %v after wider request, want 0.25", snap2.EOF)
	}
}

// ============================================================================
// Failure Poisoning
// ============================================================================

func TestLoader_OpenFailurePoisonsInterval(t *testing.T) {
	src := newTestSource(100)
	src.OpenErr = errors.New("no such file")

	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	snap := l.Loaded()
	defer snap.Release()
	if len(snap.Frames) != 0 {
		t.Errorf("got %d frames from a source that cannot open", len(snap.Frames))
	}
	if snap.EOF != nil {
		t.Errorf("EOF = %v, want nil (open failure is not stream end)", *snap.EOF)
	}

	// The poisoned range must not be retried every pass.
	opens := src.Opens()
	time.Sleep(50 * time.Millisecond)
	if src.Opens() != opens {
		t.Errorf("worker kept retrying a failing open: %d then %d", opens, src.Opens())
	}

	// A fresh request tries again.
	l.SetRequest(timeline.NewIntervalSet(ival(2, 3)), nil)
	waitUntil(t, "new open attempt", func() bool { return src.Opens() > opens })
}

// ============================================================================
// Decoder Pool
// ============================================================================

func TestLoader_ReusesParkedDecoder(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.5)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 0.5)))

	// Extending forward reuses the decoder parked at the request's end,
	// with no fresh open and no seek.
	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	if opens := src.Opens(); opens != 1 {
		t.Errorf("opens = %d, want 1", opens)
	}
	if seeks := src.Seeks(); seeks != 0 {
		t.Errorf("seeks = %d, want 0 (sequential extension needs no seek)", seeks)
	}
}

func TestLoader_SeeksForDisjointRange(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(2, 2.5)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(2, 2.5)))

	if seeks := src.Seeks(); seeks == 0 {
		t.Error("loading a range away from position 0 requires a seek")
	}
	snap := l.Loaded()
	defer snap.Release()
	starts := frameStarts(snap)
	if len(starts) != 2 || starts[0] != 2 || starts[1] != 2.25 {
		t.Errorf("frames = %v, want [2 2.25]", starts)
	}
}

func TestLoader_DropsIdleDecoders(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	// Two disjoint ranges use up to two decoders.
	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.5), ival(5, 5.5)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 0.5), ival(5, 5.5)))

	// After the request collapses to one range, spare decoders close.
	l.SetRequest(timeline.NewIntervalSet(ival(5, 5.5)), nil)
	waitUntil(t, "idle decoders to close", func() bool { return src.Live() <= 1 })
}

// ============================================================================
// In-Flight Request Changes
// ============================================================================

func TestLoader_ObsoleteFrameDiscarded(t *testing.T) {
	src := newTestSource(100)
	images := display.NewMemoryLoader()

	var l *Loader
	redirected := false
	src.OnRead = func(pos timeline.Seconds) {
		// While the first frame is mid-decode, move the request away.
		if !redirected && pos == 0 {
			redirected = true
			l.SetRequest(timeline.NewIntervalSet(ival(5, 5.5)), nil)
		}
	}

	l = New("test.fake", src.Opener(), images)
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(5, 5.5)))

	snap := l.Loaded()
	defer snap.Release()
	for _, f := range snap.Frames {
		if f.Start < 5 {
			t.Errorf("obsolete frame at %v was cached", f.Start)
		}
	}
}

func TestLoader_PartialOverlapCoversWithoutCaching(t *testing.T) {
	src := newTestSource(100)

	var l *Loader
	shrunk := false
	src.OnRead = func(pos timeline.Seconds) {
		// While the frame at [0.5, 0.75) is mid-decode, move the request
		// start into its middle.
		if !shrunk && pos == 0.5 {
			shrunk = true
			l.SetRequest(timeline.NewIntervalSet(ival(0.6, 1)), nil)
		}
	}

	l = New("test.fake", src.Opener(), display.NewMemoryLoader())
	defer l.Close()

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)

	// The tail of the in-flight frame counts as covered, so coverage
	// converges to the full shrunken request.
	waitDone(t, l, timeline.NewIntervalSet(ival(0.6, 1)))

	snap := l.Loaded()
	defer snap.Release()
	for _, f := range snap.Frames {
		if f.Start < 0.75 {
			t.Errorf("partially overlapping frame at %v was cached", f.Start)
		}
	}
}

// ============================================================================
// Shutdown
// ============================================================================

func TestLoader_CloseReleasesEverything(t *testing.T) {
	src := newTestSource(100)
	images := display.NewMemoryLoader()
	l := New("test.fake", src.Opener(), images)

	l.SetRequest(timeline.NewIntervalSet(ival(0, 1)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 1)))

	l.Close()

	if live := src.Live(); live != 0 {
		t.Errorf("%d decoders still open after Close", live)
	}
	if live := images.Live(); live != 0 {
		t.Errorf("%d images still live after Close", live)
	}
}

func TestLoader_CloseIdempotent(t *testing.T) {
	src := newTestSource(100)
	l := New("test.fake", src.Opener(), display.NewMemoryLoader())
	l.Close()
	l.Close()
}

func TestLoader_SnapshotSurvivesClose(t *testing.T) {
	src := newTestSource(100)
	images := display.NewMemoryLoader()
	l := New("test.fake", src.Opener(), images)

	l.SetRequest(timeline.NewIntervalSet(ival(0, 0.5)), nil)
	waitDone(t, l, timeline.NewIntervalSet(ival(0, 0.5)))

	snap := l.Loaded()
	l.Close()

	// The snapshot's references keep its images alive past Close.
	if images.Live() != int64(len(snap.Frames)) {
		t.Errorf("live images = %d, want %d held by snapshot", images.Live(), len(snap.Frames))
	}
	for _, f := range snap.Frames {
		if f.Image.Width() != 8 {
			t.Errorf("snapshot image unusable after Close")
		}
	}

	snap.Release()
	if images.Live() != 0 {
		t.Errorf("%d images leaked after final Release", images.Live())
	}
}
