package logger

// Standard field keys for structured logging. Use these consistently across
// packages so loader activity can be filtered and correlated per source.
const (
	// Media source and loader identity
	KeyMedia     = "media"      // media source path or URL
	KeySessionID = "session_id" // loader registry session ID

	// Loader request/cache state (interval sets in debug string form)
	KeyWanted = "wanted" // ranges the consumer currently requests
	KeyDone   = "done"   // ranges backed by cache entries
	KeyNeeded = "needed" // ranges still to fetch this pass
	KeyEOF    = "eof"    // known end-of-stream position

	// Worker pass details
	KeyInterval = "interval" // one time interval ("begin~end")
	KeyFrame    = "frame"    // a frame's display interval
	KeyDecoders = "decoders" // decoder pool size
	KeyChanges  = "changes"  // cache mutations in one pass

	// Generic
	KeyError    = "error"
	KeyDuration = "duration_ms"
	KeyPath     = "path"
)
