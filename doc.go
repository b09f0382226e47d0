// Package vortex2d is the numerical core of a 2D grid fluid solver.
//
// # Overview
//
// vortex2d solves the weighted pressure Poisson equation with a
// multigrid V-cycle and maintains a signed distance field for
// fluid and solid boundaries. All work is expressed as small per-cell
// kernels recorded into command buffers and executed by a compute
// device: on the CPU, on a GPU through gogpu/wgpu, or through OpenCL.
//
// # Quick Start
//
//	s, err := vortex2d.NewSession()
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	mg, err := s.NewMultigrid(compute.Sz(256, 256))
//	if err != nil {
//		return err
//	}
//	data := mg.GetData()
//	// write divergence into data.RHS and the boundary weights into a buffer
//	err = s.Run(ctx, func(cmd *compute.CommandBuffer) error {
//		if err := mg.Init(cmd, boundary); err != nil {
//			return err
//		}
//		mg.Solve(cmd)
//		return nil
//	})
//
// # Packages
//
//   - compute: dispatcher contract (sizes, kernels, bindings, command buffers, devices)
//   - kernels: the per-cell kernels with CPU, WGSL and OpenCL forms
//   - grid: double-buffered fields
//   - reduce: sum, max and dot product reductions
//   - linearsolver: Jacobi smoother and multigrid hierarchy
//   - levelset: redistancing and extrapolation
//   - backend/cpu, backend/wgpu, backend/opencl: devices
//
// # Grid Conventions
//
// Fields are row-major float32 arrays; cell (x, y) is at index
// y*width + x. Level d of a hierarchy has grid spacing 2^d fine cells.
// Values outside the domain behave as a zero-pressure face between the
// edge cell and its mirror.
package vortex2d

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
