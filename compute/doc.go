// Package compute describes GPU-style compute work independently of the
// device that runs it.
//
// A [Kernel] declares an ordered list of binding slots and an optional
// block of constants. A [Work] pairs a kernel with a [ComputeSize] and
// the pipeline compiled for it; binding concrete buffers produces a
// [Bound] that records dispatches into a [CommandBuffer]. Dispatches run
// strictly in recording order when the buffer is submitted to a [Device],
// and every dispatch observes the writes of the ones before it.
//
// Recording never touches the device. Binding errors found while
// recording are kept on the command buffer and returned by Submit before
// anything executes.
package compute
