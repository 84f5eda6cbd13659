package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    atomic.Int64
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// MarkStarted records the moment the server began accepting connections.
func MarkStarted(t time.Time) {
	startedAt.Store(t.UnixNano())
}

// IsReady reports whether readyDelay has elapsed since MarkStarted.
// A process that never called MarkStarted is not ready.
func IsReady(now time.Time, readyDelay time.Duration) bool {
	ns := startedAt.Load()
	if ns == 0 {
		return false
	}
	return !now.Before(time.Unix(0, ns).Add(readyDelay))
}
