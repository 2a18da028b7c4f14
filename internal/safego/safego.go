// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine. A panic is recovered and logged with the task
// name instead of taking the process down.
func Go(task string, fn func()) {
	go func() {
		defer Recover(task)
		fn()
	}()
}

// Recover is deferred at the top of long-lived goroutines that are not started
// through Go.
func Recover(task string) {
	if r := recover(); r != nil {
		slog.Error("recovered panic in background goroutine",
			"task", task, "panic", r, "stack", string(debug.Stack()))
	}
}
