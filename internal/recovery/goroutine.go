package recovery

import (
	"runtime/debug"

	"github.com/computehome/launcher/internal/logger"
)

// SafeGo runs a function in a goroutine with automatic panic recovery
func SafeGo(name string, fn func()) {
	go Run(name, fn)
}

// SafeGoWithCleanup runs a function in a goroutine with panic recovery and cleanup
func SafeGoWithCleanup(name string, fn func(), cleanup func()) {
	go func() {
		defer func() {
			if cleanup != nil {
				cleanup()
			}
		}()
		Run(name, fn)
	}()
}

// Run calls fn on the current goroutine and logs any panic instead of
// propagating it. It reports whether fn returned normally.
func Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			logger.Logger.Error().
				Str("task", name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("🚨 panic recovered")
		}
	}()
	fn()
	return true
}
