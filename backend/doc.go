// Package backend keeps the registry of compute devices.
//
// Device packages register a factory from an init function, so importing
// a backend for its side effect makes it selectable by name:
//
//	import (
//		_ "github.com/KangWeon/Vortex2D/backend/cpu"
//		_ "github.com/KangWeon/Vortex2D/backend/wgpu"
//	)
//
//	dev, err := backend.Open("gpu", backend.Config{})
//
// OpenDefault tries the registered backends in priority order
// (gpu, opencl, cpu) and returns the first one that opens.
package backend
