//go:build !opencl

package opencl

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
)

// New reports that OpenCL support was not compiled in.
func New() (compute.Device, error) {
	return nil, fmt.Errorf("%w: OpenCL support is not enabled; rebuild with -tags opencl", backend.ErrBackendNotAvailable)
}
