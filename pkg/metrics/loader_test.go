package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/egnor/video-play/pkg/loader"
)

// The registry is package-global and InitRegistry cannot be undone, so the
// disabled and enabled behaviors are exercised in one ordered test.
func TestMetricsLifecycle(t *testing.T) {
	if IsEnabled() {
		t.Fatal("metrics enabled before InitRegistry")
	}
	if GetRegistry() != nil {
		t.Fatal("GetRegistry should be nil while disabled")
	}
	if Handler() != nil {
		t.Fatal("Handler should be nil while disabled")
	}
	if m := NewLoaderMetrics(); m != nil {
		t.Fatal("NewLoaderMetrics should be nil while disabled")
	}

	// A nil sink must be safe to use; the loader calls it unconditionally
	// through the interface it was configured with.
	var sink loader.Metrics = (*loaderMetrics)(nil)
	sink.ObservePass(time.Millisecond)
	sink.RecordFrameLoaded()
	sink.RecordFrameObsolete()
	sink.RecordFramePartial()
	sink.RecordFramesEvicted(3)
	sink.RecordDecoderOpen()
	sink.RecordDecoderReuse()
	sink.RecordDecodersDropped(2)
	sink.RecordOpenError()
	sink.RecordDecodeError()

	InitRegistry()
	InitRegistry() // idempotent
	if !IsEnabled() {
		t.Fatal("metrics disabled after InitRegistry")
	}

	m := NewLoaderMetrics()
	if m == nil {
		t.Fatal("NewLoaderMetrics returned nil with metrics enabled")
	}
	m.ObservePass(5 * time.Millisecond)
	m.RecordFrameLoaded()
	m.RecordFramesEvicted(4)
	m.RecordDecoderOpen()

	h := Handler()
	if h == nil {
		t.Fatal("Handler returned nil with metrics enabled")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("metrics endpoint returned %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"videoplay_loader_passes_total",
		"videoplay_loader_frames_loaded_total 1",
		"videoplay_loader_frames_evicted_total 4",
		"videoplay_loader_decoder_opens_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
