//go:build nogpu

package wgpu

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/gogpu/gpucontext"
)

// New reports that the package was built without GPU support.
func New() (compute.Device, error) {
	return nil, fmt.Errorf("%w: built with nogpu", backend.ErrBackendNotAvailable)
}

// NewDeviceFromProvider reports that the package was built without GPU
// support.
func NewDeviceFromProvider(gpucontext.DeviceProvider) (compute.Device, error) {
	return New()
}
