// Package display defines the GPU import boundary the frame loader feeds.
//
// The loader hands decoded raw images to an ImageLoader and gets back owned
// Image handles. Import may be slow; the loader never holds its cache lock
// across a LoadImage call. Real KMS/DRM import lives outside this module;
// MemoryLoader is the in-process implementation used by tools and tests.
package display

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/egnor/video-play/pkg/media"
)

// ImageLoader imports decoded raw images into display memory.
//
// Implementations must be safe for concurrent use and safely callable while
// the caller holds no locks of its own.
type ImageLoader interface {
	// LoadImage imports raw pixels and returns an owned handle with one
	// reference. The caller releases it when done.
	LoadImage(ctx context.Context, raw media.RawImage) (*Image, error)
}

// Image is a loaded, display-resident image handle.
//
// Handles are shared by reference counting: the loader's cache entry and
// every snapshot copy handed to a consumer each hold one reference, and the
// backing resource is freed when the last holder releases. Retain and
// Release are safe for concurrent use.
type Image struct {
	width  int
	height int
	size   int

	refs   atomic.Int32
	onFree func(*Image)
	pixels []byte
}

// Width returns the image width in pixels.
func (im *Image) Width() int { return im.width }

// Height returns the image height in pixels.
func (im *Image) Height() int { return im.height }

// Size returns the imported size in bytes.
func (im *Image) Size() int { return im.size }

// Pixels returns the imported pixel data. The returned slice is owned by
// the handle and valid until the last reference is released.
func (im *Image) Pixels() []byte { return im.pixels }

// Retain adds a reference and returns the same handle.
func (im *Image) Retain() *Image {
	im.refs.Add(1)
	return im
}

// Release drops one reference, freeing the backing resource when the last
// holder lets go.
func (im *Image) Release() {
	if im.refs.Add(-1) == 0 {
		im.pixels = nil
		if im.onFree != nil {
			im.onFree(im)
		}
	}
}

// MemoryLoader keeps imported images in process memory. It tracks the
// number of live handles so tests and the status API can observe leaks.
type MemoryLoader struct {
	live atomic.Int64
}

// NewMemoryLoader creates an in-memory image loader.
func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{}
}

// LoadImage copies the raw pixels into a new refcounted handle.
func (l *MemoryLoader) LoadImage(ctx context.Context, raw media.RawImage) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, fmt.Errorf("load image: bad dimensions %dx%d", raw.Width, raw.Height)
	}

	pixels := make([]byte, len(raw.Pixels))
	copy(pixels, raw.Pixels)

	im := &Image{
		width:  raw.Width,
		height: raw.Height,
		size:   len(pixels),
		pixels: pixels,
		onFree: func(*Image) { l.live.Add(-1) },
	}
	im.refs.Store(1)
	l.live.Add(1)
	return im, nil
}

// Live returns the number of image handles not yet fully released.
func (l *MemoryLoader) Live() int64 {
	return l.live.Load()
}
