package compute

import (
	"errors"
	"fmt"
	"slices"
)

// CellFunc is the CPU form of a kernel: it runs once per domain cell.
type CellFunc func(c *Cell)

// Kernel is an immutable description of a per-cell computation: its
// binding slots, how many constant words it takes and its sources for
// each backend. Create kernels with [NewKernel].
type Kernel struct {
	name      string
	slots     []SlotKind
	constants int
	cpu       CellFunc
	wgsl      string
	opencl    string
}

// Name returns the kernel name. It is also the OpenCL entry point.
func (k *Kernel) Name() string { return k.name }

// Slots returns a copy of the declared binding slots.
func (k *Kernel) Slots() []SlotKind { return slices.Clone(k.slots) }

// ConstantWords returns the number of 4-byte constant words per dispatch.
func (k *Kernel) ConstantWords() int { return k.constants }

// CPU returns the cell function, or nil when the kernel has none.
func (k *Kernel) CPU() CellFunc { return k.cpu }

// WGSL returns the WGSL source, or "" when the kernel has none.
func (k *Kernel) WGSL() string { return k.wgsl }

// OpenCL returns the OpenCL C source, or "" when the kernel has none.
func (k *Kernel) OpenCL() string { return k.opencl }

// Images returns the indices of the image slots, in slot order.
func (k *Kernel) Images() []int {
	var idx []int
	for i, s := range k.slots {
		if s == SlotImage {
			idx = append(idx, i)
		}
	}
	return idx
}

func (k *Kernel) String() string {
	return fmt.Sprintf("%s%v", k.name, k.slots)
}

// KernelBuilder assembles a Kernel. Every method returns a new builder,
// so a partially configured builder can be shared and extended.
type KernelBuilder struct {
	k Kernel
}

// NewKernel starts a kernel description.
func NewKernel(name string) KernelBuilder {
	return KernelBuilder{k: Kernel{name: name}}
}

func (b KernelBuilder) slot(kind SlotKind) KernelBuilder {
	b.k.slots = append(slices.Clip(b.k.slots), kind)
	return b
}

// Input appends a read-only buffer slot.
func (b KernelBuilder) Input() KernelBuilder { return b.slot(SlotInput) }

// Output appends a written buffer slot.
func (b KernelBuilder) Output() KernelBuilder { return b.slot(SlotOutput) }

// Image appends a sampled read-only slot.
func (b KernelBuilder) Image() KernelBuilder { return b.slot(SlotImage) }

// Constants sets the number of constant words.
func (b KernelBuilder) Constants(words int) KernelBuilder {
	b.k.constants = words
	return b
}

// CPU sets the cell function.
func (b KernelBuilder) CPU(fn CellFunc) KernelBuilder {
	b.k.cpu = fn
	return b
}

// WGSL sets the WGSL source.
func (b KernelBuilder) WGSL(src string) KernelBuilder {
	b.k.wgsl = src
	return b
}

// OpenCL sets the OpenCL C source.
func (b KernelBuilder) OpenCL(src string) KernelBuilder {
	b.k.opencl = src
	return b
}

// Build validates the description and returns the kernel.
func (b KernelBuilder) Build() (*Kernel, error) {
	k := b.k
	k.slots = slices.Clone(k.slots)
	switch {
	case k.name == "":
		return nil, errors.New("compute: kernel without a name")
	case !slices.Contains(k.slots, SlotOutput):
		return nil, fmt.Errorf("compute: kernel %q has no output slot", k.name)
	case k.constants < 0:
		return nil, fmt.Errorf("compute: kernel %q has negative constant count", k.name)
	}
	return &k, nil
}

// MustBuild is like Build but panics on error. It is meant for package
// level kernel tables.
func (b KernelBuilder) MustBuild() *Kernel {
	k, err := b.Build()
	if err != nil {
		panic(err)
	}
	return k
}
