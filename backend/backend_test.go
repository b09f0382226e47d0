package backend

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/KangWeon/Vortex2D/compute"
)

type stubDevice struct{ name string }

func (d stubDevice) Name() string { return d.name }
func (stubDevice) CreateBuffer(string, compute.Size) (compute.Buffer, error) {
	return nil, errors.New("stub")
}
func (stubDevice) WriteBuffer(compute.Buffer, []float32) error { return nil }
func (stubDevice) ReadBuffer(compute.Buffer, []float32) error  { return nil }
func (stubDevice) ReleaseBuffer(compute.Buffer)                {}
func (stubDevice) CreatePipeline(*compute.Kernel, compute.Size) (compute.Pipeline, error) {
	return nil, errors.New("stub")
}
func (stubDevice) ReleasePipeline(compute.Pipeline)                     {}
func (stubDevice) Submit(context.Context, *compute.CommandBuffer) error { return nil }
func (stubDevice) Close() error                                         { return nil }

// swapRegistry isolates a test from the package-level registry.
func swapRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = make(map[string]Factory)
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestRegisterOpen(t *testing.T) {
	swapRegistry(t)
	Register(CPU, func(Config) (compute.Device, error) { return stubDevice{"stub-cpu"}, nil })

	if !IsRegistered(CPU) || IsRegistered(GPU) {
		t.Fatal("registration state wrong")
	}
	dev, err := Open(CPU, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if dev.Name() != "stub-cpu" {
		t.Errorf("Name() = %q", dev.Name())
	}

	if _, err := Open(GPU, Config{}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(unregistered) = %v, want ErrBackendNotAvailable", err)
	}

	Unregister(CPU)
	if len(Available()) != 0 {
		t.Errorf("Available() = %v after Unregister", Available())
	}
}

func TestOpenDefaultFallsBack(t *testing.T) {
	swapRegistry(t)
	gpuErr := errors.New("no adapter")
	Register(GPU, func(Config) (compute.Device, error) { return nil, gpuErr })
	Register(CPU, func(Config) (compute.Device, error) { return stubDevice{"cpu"}, nil })

	dev, err := OpenDefault(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if dev.Name() != "cpu" {
		t.Errorf("OpenDefault picked %q, want cpu", dev.Name())
	}
	if got := Available(); !slices.Equal(got, []string{CPU, GPU}) {
		t.Errorf("Available() = %v", got)
	}
}

func TestOpenDefaultAllFail(t *testing.T) {
	swapRegistry(t)
	if _, err := OpenDefault(Config{}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("empty registry: %v", err)
	}

	boom := errors.New("boom")
	Register(OpenCL, func(Config) (compute.Device, error) { return nil, boom })
	if _, err := OpenDefault(Config{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped factory error", err)
	}
}
