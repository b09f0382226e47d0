package compute

import (
	"fmt"
	"math"
)

// SlotKind is the declared kind of a kernel binding slot.
type SlotKind uint8

const (
	// SlotInput is a read-only buffer.
	SlotInput SlotKind = iota
	// SlotOutput is a buffer the kernel writes at its own cell.
	SlotOutput
	// SlotImage is a read-only buffer fetched through a Sampler, so reads
	// outside its extent follow the sampler's address mode.
	SlotImage
)

func (k SlotKind) String() string {
	switch k {
	case SlotInput:
		return "input"
	case SlotOutput:
		return "output"
	case SlotImage:
		return "image"
	default:
		return fmt.Sprintf("SlotKind(%d)", k)
	}
}

// AddressMode selects what an image fetch returns outside the image extent.
type AddressMode uint32

const (
	// ClampToBorder returns the sampler's border value.
	ClampToBorder AddressMode = iota
	// ClampToEdge returns the nearest texel inside the image.
	ClampToEdge
)

func (m AddressMode) String() string {
	switch m {
	case ClampToBorder:
		return "clamp-to-border"
	case ClampToEdge:
		return "clamp-to-edge"
	default:
		return fmt.Sprintf("AddressMode(%d)", uint32(m))
	}
}

// Sampler describes how an image binding is addressed.
type Sampler struct {
	Address AddressMode
	Border  float32
}

// BorderSampler returns a clamp-to-border sampler with a zero border.
func BorderSampler() Sampler {
	return Sampler{Address: ClampToBorder}
}

// EdgeSampler returns a clamp-to-edge sampler.
func EdgeSampler() Sampler {
	return Sampler{Address: ClampToEdge}
}

// Fetch reads data (an image of the given size) at (x, y) applying the
// sampler's addressing.
func (s Sampler) Fetch(data []float32, size Size, x, y int) float32 {
	if size.Contains(x, y) {
		return data[size.Index(x, y)]
	}
	if s.Address == ClampToEdge {
		x = min(max(x, 0), size.Width-1)
		y = min(max(y, 0), size.Height-1)
		return data[size.Index(x, y)]
	}
	return s.Border
}

// BorderBits returns the IEEE-754 bits of the border value, as packed into
// kernel parameters.
func (s Sampler) BorderBits() uint32 {
	return math.Float32bits(s.Border)
}

type bindingTag uint8

const (
	tagBuffer bindingTag = iota + 1
	tagImage
)

// Binding is one resource handed to a kernel slot. It is either a plain
// buffer or an image (a buffer plus a sampler); build it with [BufferRef]
// or [ImageRef].
type Binding struct {
	tag     bindingTag
	buffer  Buffer
	sampler Sampler
}

// BufferRef binds buf to an input or output slot.
func BufferRef(buf Buffer) Binding {
	return Binding{tag: tagBuffer, buffer: buf}
}

// ImageRef binds buf to an image slot, addressed through sampler.
func ImageRef(sampler Sampler, buf Buffer) Binding {
	return Binding{tag: tagImage, buffer: buf, sampler: sampler}
}

// Buffer returns the bound buffer.
func (b Binding) Buffer() Buffer { return b.buffer }

// IsImage reports whether the binding is an image.
func (b Binding) IsImage() bool { return b.tag == tagImage }

// Sampler returns the image sampler and true for image bindings.
func (b Binding) Sampler() (Sampler, bool) {
	return b.sampler, b.tag == tagImage
}

func (b Binding) String() string {
	label := "<nil>"
	if b.buffer != nil {
		label = b.buffer.Label()
	}
	switch b.tag {
	case tagBuffer:
		return "buffer(" + label + ")"
	case tagImage:
		return "image(" + b.sampler.Address.String() + ", " + label + ")"
	default:
		return "invalid"
	}
}

// accepts reports whether a binding may fill a slot of kind k.
func (b Binding) accepts(k SlotKind) bool {
	switch k {
	case SlotInput, SlotOutput:
		return b.tag == tagBuffer
	case SlotImage:
		return b.tag == tagImage
	}
	return false
}

// checkBindings validates bindings against the kernel's declared slots.
func checkBindings(k *Kernel, bindings []Binding) error {
	slots := k.Slots()
	if len(bindings) != len(slots) {
		return fmt.Errorf("%w: kernel %q declares %d slots, got %d bindings",
			ErrBindingMismatch, k.Name(), len(slots), len(bindings))
	}
	for i, b := range bindings {
		if !b.accepts(slots[i]) {
			return fmt.Errorf("%w: kernel %q slot %d is %s, got %s",
				ErrBindingMismatch, k.Name(), i, slots[i], b)
		}
		if b.buffer == nil {
			return fmt.Errorf("%w: kernel %q slot %d", ErrNilBuffer, k.Name(), i)
		}
	}
	for i, b := range bindings {
		if slots[i] != SlotOutput {
			continue
		}
		for j, other := range bindings {
			if j != i && other.buffer == b.buffer {
				return fmt.Errorf("%w: kernel %q writes slot %d which aliases slot %d (%s)",
					ErrBindingMismatch, k.Name(), i, j, b.buffer.Label())
			}
		}
	}
	return nil
}
