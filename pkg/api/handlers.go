package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/egnor/video-play/pkg/loader"
	"github.com/egnor/video-play/pkg/timeline"
)

// LoaderHandler serves cache state for the loaders in a registry.
type LoaderHandler struct {
	registry *loader.Registry
}

// NewLoaderHandler creates a handler over the given registry.
func NewLoaderHandler(registry *loader.Registry) *LoaderHandler {
	return &LoaderHandler{registry: registry}
}

// LoaderSummary is one row in the loader list response.
type LoaderSummary struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Started time.Time `json:"started"`
	Frames  int       `json:"frames"`
}

// IntervalJSON is one half-open time range in a response.
type IntervalJSON struct {
	Begin float64 `json:"begin"`
	End   float64 `json:"end"`
}

// LoaderDetail is the full cache state of one loader.
type LoaderDetail struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Started    time.Time      `json:"started"`
	Done       []IntervalJSON `json:"done"`
	EOF        *float64       `json:"eof,omitempty"`
	FrameTimes []float64      `json:"frame_times"`
}

// List handles GET /api/v1/loaders.
func (h *LoaderHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.List()
	out := make([]LoaderSummary, 0, len(entries))
	for _, e := range entries {
		snap := e.Loader.Loaded()
		out = append(out, LoaderSummary{
			ID: e.ID, Source: e.Source, Started: e.Started,
			Frames: len(snap.Frames),
		})
		snap.Release()
	}
	JSON(w, http.StatusOK, OKResponse(out))
}

// Get handles GET /api/v1/loaders/{id}.
func (h *LoaderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.registry.Get(id)
	if !ok {
		JSON(w, http.StatusNotFound, ErrorResponse("no such loader"))
		return
	}

	snap := entry.Loader.Loaded()
	defer snap.Release()

	detail := LoaderDetail{
		ID: entry.ID, Source: entry.Source, Started: entry.Started,
		Done:       intervalsJSON(snap.Done),
		FrameTimes: make([]float64, 0, len(snap.Frames)),
	}
	if snap.EOF != nil {
		e := float64(*snap.EOF)
		detail.EOF = &e
	}
	for _, f := range snap.Frames {
		detail.FrameTimes = append(detail.FrameTimes, float64(f.Start))
	}
	JSON(w, http.StatusOK, OKResponse(detail))
}

func intervalsJSON(set timeline.IntervalSet) []IntervalJSON {
	out := make([]IntervalJSON, 0, set.Len())
	for _, iv := range set.Intervals() {
		out = append(out, IntervalJSON{Begin: float64(iv.Begin), End: float64(iv.End)})
	}
	return out
}
