// Package opencl implements compute.Device on an OpenCL device.
//
// Each kernel's OpenCL C source is built into its own program. The slot
// buffers are passed as arguments in slot order, followed by the
// parameter block as a read-only int buffer. Dispatches are enqueued on
// one in-order queue, which gives the ordering a command buffer needs.
//
// The backend needs the OpenCL headers and an ICD loader, so it is only
// compiled with -tags opencl; otherwise New reports
// backend.ErrBackendNotAvailable.
package opencl
