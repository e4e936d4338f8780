package loader

// Signal is a coalescing single-slot wake notification.
//
// Set marks the signal pending; multiple Sets before a Wait collapse into
// one wakeup (at-least-once delivery). Wait blocks until a Set not already
// consumed. The loader uses one Signal to wake its worker and accepts
// another from the consumer to announce cache changes.
//
// Safe for concurrent use by any number of setters and one waiter.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a signal with no pending wakeup.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Set marks the signal pending. Idempotent while a wakeup is already
// pending; never blocks.
func (s *Signal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the next Set not already consumed.
func (s *Signal) Wait() {
	<-s.ch
}

// Chan exposes the wakeup as a receive channel, for callers that need to
// select against timeouts or shutdown.
func (s *Signal) Chan() <-chan struct{} {
	return s.ch
}
