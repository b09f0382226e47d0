package kernels

import (
	"strings"
	"testing"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/gogpu/naga"
)

// TestShadersCompile compiles every WGSL kernel to SPIR-V.
func TestShadersCompile(t *testing.T) {
	for _, k := range All() {
		for _, local := range []compute.Size{compute.DefaultLocalSize, compute.RowLocalSize} {
			t.Run(k.Name()+"@"+local.String(), func(t *testing.T) {
				src := Specialize(k.WGSL(), local)
				if strings.Contains(src, "WORKGROUP_") {
					t.Fatal("workgroup placeholders left after Specialize")
				}

				spirv, err := naga.Compile(src)
				if err != nil {
					msg := err.Error()
					if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
						t.Skipf("Skipping: naga feature not yet implemented: %v", err)
					}
					t.Fatalf("compile %s: %v", k.Name(), err)
				}
				if len(spirv) < 4 {
					t.Fatal("SPIR-V too short")
				}
				magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
				if magic != 0x07230203 {
					t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", magic)
				}
			})
		}
	}
}

// TestSourcesPresent checks every kernel carries all three forms and that
// the OpenCL entry point matches the kernel name.
func TestSourcesPresent(t *testing.T) {
	for _, k := range All() {
		if k.CPU() == nil {
			t.Errorf("%s: no CPU function", k.Name())
		}
		if !strings.Contains(k.WGSL(), "fn main(") {
			t.Errorf("%s: WGSL has no main entry point", k.Name())
		}
		if !strings.Contains(k.OpenCL(), "__kernel void "+k.Name()+"(") {
			t.Errorf("%s: OpenCL source has no matching entry point", k.Name())
		}
	}
}

// TestWGSLBindingsMatchSlots checks the binding count of each shader: one
// storage buffer per slot plus the parameter block.
func TestWGSLBindingsMatchSlots(t *testing.T) {
	for _, k := range All() {
		got := strings.Count(k.WGSL(), "@binding(")
		if want := len(k.Slots()) + 1; got != want {
			t.Errorf("%s: %d bindings in WGSL, want %d", k.Name(), got, want)
		}
		if n := strings.Count(k.WGSL(), "var<storage, read_write>"); n != 1 {
			t.Errorf("%s: %d writable bindings, want 1", k.Name(), n)
		}
	}
}
