//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/kernels"
	"github.com/gogpu/naga"
)

// compileKernel specialises the kernel's WGSL for local and compiles it
// to SPIR-V words.
func compileKernel(k *compute.Kernel, local compute.Size) ([]uint32, error) {
	src := k.WGSL()
	if src == "" {
		return nil, fmt.Errorf("%w: %s has no WGSL source", compute.ErrUnknownKernel, k.Name())
	}
	spirvBytes, err := naga.Compile(kernels.Specialize(src, local))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", k.Name(), err)
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
