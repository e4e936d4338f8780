package media

import "fmt"

// OpenError reports that a decoder could not be constructed for a source.
// The loader converts this into cache state (the needed range is marked
// covered-but-empty) instead of propagating it.
type OpenError struct {
	Source string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open media %q: %v", e.Source, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// DecodeError reports that a seek or frame read failed on a live decoder.
// The loader treats it as end-of-stream from the current position.
type DecodeError struct {
	Source string
	Op     string // "seek" or "decode"
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s media %q: %v", e.Op, e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
