package vortex2d

import (
	"log/slog"

	"github.com/KangWeon/Vortex2D/internal/logging"
)

// SetLogger configures the logger for vortex2d and all its sub-packages.
// By default, vortex2d produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by vortex2d:
//   - [slog.LevelDebug]: dispatch and pipeline diagnostics (kernel, domain, workgroups)
//   - [slog.LevelInfo]: lifecycle events (device selected, hierarchy built)
//   - [slog.LevelWarn]: non-fatal issues (backend fallback, live buffers at close)
//
// Example:
//
//	vortex2d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by vortex2d.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
