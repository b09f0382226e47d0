package backend

import (
	"errors"

	"github.com/KangWeon/Vortex2D/compute"
)

// Backend names.
const (
	// CPU is the portable backend running kernels on a goroutine pool.
	CPU = "cpu"
	// GPU runs WGSL kernels through gogpu/wgpu.
	GPU = "gpu"
	// OpenCL runs OpenCL C kernels.
	OpenCL = "opencl"
)

var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or failed to open.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Config carries options understood by the device factories. Fields a
// backend does not use are ignored.
type Config struct {
	// Workers is the CPU worker count; 0 selects GOMAXPROCS.
	Workers int
}

// Factory opens a device.
type Factory func(Config) (compute.Device, error)
