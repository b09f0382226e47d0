// Package kernels holds the per-cell compute kernels of the solver.
//
// Every kernel carries three equivalent implementations: a Go cell
// function run by backend/cpu, a WGSL compute shader run by backend/wgpu
// and an OpenCL C kernel run by backend/opencl. The WGSL sources declare
// their workgroup extent with the WORKGROUP_X and WORKGROUP_Y
// placeholders; [Specialize] substitutes them before compilation.
//
// Binding slots and constant words per kernel:
//
//	fill        out                              value
//	copy        src, out
//	multiply    a, b, out
//	reduce_sum  image src, out
//	reduce_max  image src, out
//	jacobi      pressure, rhs, weights, out     omega, h2
//	residual    pressure, rhs, weights, out     h2
//	restriction image fine, out
//	prolongate  image coarse, out
//	correct     pressure, correction, out
//	redistance  phi0, phi, out                  dt
//	extrapolate solid phi, field, out
package kernels
