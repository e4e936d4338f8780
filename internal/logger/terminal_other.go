//go:build !linux && !darwin

package logger

// isTerminal reports whether fd refers to a terminal. On platforms without
// a cheap ioctl probe the logger just skips color output.
func isTerminal(fd uintptr) bool {
	return false
}
