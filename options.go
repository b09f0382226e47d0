package vortex2d

import (
	"log/slog"

	"github.com/KangWeon/Vortex2D/compute"
)

// Option configures a Session during creation.
//
// Example:
//
//	// Default: best registered backend
//	s, err := vortex2d.NewSession()
//
//	// Deterministic CPU run
//	s, err := vortex2d.NewSession(vortex2d.WithBackend("cpu"), vortex2d.WithWorkers(1))
type Option func(*options)

type options struct {
	device        compute.Device
	backend       string
	workers       int
	logger        *slog.Logger
	cacheCapacity int
}

func defaultOptions() options {
	return options{
		cacheCapacity: 0, // cache.DefaultCapacity
	}
}

// WithDevice makes the session use an existing device. The session does
// not close a device it did not open.
func WithDevice(d compute.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithBackend selects a registered backend by name ("cpu", "gpu",
// "opencl") instead of the first one that opens.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithWorkers sets the CPU backend's goroutine count. Zero selects
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.workers = n
		}
	}
}

// WithLogger installs l as the library logger when the session opens.
// It has the same process-wide effect as SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPipelineCacheCapacity bounds the number of compiled pipelines kept
// per cache shard for lookup. Least recently used pipelines leave the
// cache first and are released once no solver of the session uses them.
func WithPipelineCacheCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheCapacity = n
		}
	}
}
