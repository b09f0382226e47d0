package vortex2d

import (
	"errors"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/linearsolver"
)

// Errors returned by the library, re-exported so callers can test with
// errors.Is without importing the sub-packages.
var (
	ErrBindingMismatch     = compute.ErrBindingMismatch
	ErrSizeMismatch        = compute.ErrSizeMismatch
	ErrResourceCreation    = compute.ErrResourceCreation
	ErrNilBuffer           = compute.ErrNilBuffer
	ErrUnknownKernel       = compute.ErrUnknownKernel
	ErrDeviceClosed        = compute.ErrDeviceClosed
	ErrInvalidSize         = compute.ErrInvalidSize
	ErrBackendNotAvailable = backend.ErrBackendNotAvailable
	ErrNotBound            = linearsolver.ErrNotBound

	// ErrSessionClosed is returned by Session methods after Close.
	ErrSessionClosed = errors.New("vortex2d: session closed")
)
