package kernels

import (
	"embed"
	"strconv"
	"strings"

	"github.com/KangWeon/Vortex2D/compute"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

//go:embed opencl/*.cl
var openclFS embed.FS

func wgsl(name string) string {
	src, err := shaderFS.ReadFile("shaders/" + name + ".wgsl")
	if err != nil {
		panic("kernels: missing shader " + name)
	}
	return string(src)
}

func opencl(name string) string {
	src, err := openclFS.ReadFile("opencl/" + name + ".cl")
	if err != nil {
		panic("kernels: missing OpenCL source " + name)
	}
	return string(src)
}

func kernel(name string) compute.KernelBuilder {
	return compute.NewKernel(name).WGSL(wgsl(name)).OpenCL(opencl(name))
}

var (
	// Fill writes a constant into every cell.
	Fill = kernel("fill").Output().Constants(1).CPU(fill).MustBuild()

	// Copy copies src into out.
	Copy = kernel("copy").Input().Output().CPU(copyCell).MustBuild()

	// Multiply writes the element-wise product of two buffers.
	Multiply = kernel("multiply").Input().Input().Output().CPU(multiply).MustBuild()

	// ReduceSum sums each 2x2 block of its image into one cell.
	ReduceSum = kernel("reduce_sum").Image().Output().CPU(reduceSum).MustBuild()

	// ReduceMax takes the largest magnitude of each 2x2 block of its image.
	ReduceMax = kernel("reduce_max").Image().Output().CPU(reduceMax).MustBuild()

	// Jacobi runs one weighted Jacobi sweep of the Poisson operator.
	Jacobi = kernel("jacobi").Input().Input().Input().Output().Constants(2).CPU(jacobi).MustBuild()

	// Residual computes rhs - A*pressure.
	Residual = kernel("residual").Input().Input().Input().Output().Constants(1).CPU(residual).MustBuild()

	// Restrict averages each 2x2 block of the fine image into one coarse cell.
	Restrict = kernel("restriction").Image().Output().CPU(restrict).MustBuild()

	// Prolongate bilinearly interpolates the coarse image onto the fine grid.
	Prolongate = kernel("prolongate").Image().Output().CPU(prolongate).MustBuild()

	// Correct adds a correction to the pressure.
	Correct = kernel("correct").Input().Input().Output().CPU(correct).MustBuild()

	// Redistance runs one upwind relaxation step of the Eikonal equation,
	// pinning cells next to the zero crossing of phi0.
	Redistance = kernel("redistance").Input().Input().Output().Constants(1).CPU(redistance).MustBuild()

	// Extrapolate copies into solid cells the value of the neighbour that
	// lies furthest out of the solid.
	Extrapolate = kernel("extrapolate").Input().Input().Output().CPU(extrapolate).MustBuild()
)

// All returns every kernel of the package.
func All() []*compute.Kernel {
	return []*compute.Kernel{
		Fill, Copy, Multiply, ReduceSum, ReduceMax, Jacobi, Residual,
		Restrict, Prolongate, Correct, Redistance, Extrapolate,
	}
}

// Specialize substitutes the workgroup extent into a WGSL source.
func Specialize(src string, local compute.Size) string {
	return strings.NewReplacer(
		"WORKGROUP_X", strconv.Itoa(local.Width),
		"WORKGROUP_Y", strconv.Itoa(local.Height),
	).Replace(src)
}
