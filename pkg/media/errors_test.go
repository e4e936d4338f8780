package media

import (
	"errors"
	"os"
	"testing"
)

func TestOpenError_Unwrap(t *testing.T) {
	err := &OpenError{Source: "clip.mp4", Err: os.ErrNotExist}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("OpenError should unwrap to its cause")
	}

	var oe *OpenError
	if !errors.As(error(err), &oe) || oe.Source != "clip.mp4" {
		t.Error("errors.As should recover the OpenError")
	}
}

func TestDecodeError_Message(t *testing.T) {
	cause := errors.New("bitstream damaged")
	err := &DecodeError{Source: "clip.mp4", Op: "decode", Err: cause}

	if got := err.Error(); got != `decode media "clip.mp4": bitstream damaged` {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("DecodeError should unwrap to its cause")
	}
}
