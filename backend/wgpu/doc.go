// Package wgpu implements compute.Device on the GPU through the
// gogpu/wgpu hardware abstraction layer.
//
// Kernels are compiled from their embedded WGSL sources: the workgroup
// extent is substituted into the source, naga translates it to SPIR-V
// and the HAL builds one compute pipeline per kernel and extent.
//
// Every dispatch of a command buffer is encoded as its own compute pass
// in a single command encoder, so a dispatch observes all writes of the
// previous one. Submit waits on a fence before returning.
//
// A host application that already owns a device (for example a gogpu
// window) can share it through NewDeviceFromProvider; the device is then
// not destroyed by Close.
//
// Build with -tags nogpu to leave the backend out.
package wgpu
