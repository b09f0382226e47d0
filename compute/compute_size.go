package compute

// DefaultLocalSize is the workgroup extent used for 2D domains.
var DefaultLocalSize = Size{Width: 16, Height: 16}

// RowLocalSize is the workgroup extent used for single-row domains.
var RowLocalSize = Size{Width: 256, Height: 1}

// ComputeSize describes how a domain is tiled into workgroups.
type ComputeSize struct {
	// Domain is the number of cells the kernel runs over.
	Domain Size
	// LocalSize is the extent of one workgroup.
	LocalSize Size
	// WorkSize is the number of workgroups along each axis.
	WorkSize Size
}

// NewComputeSize tiles domain with the default workgroup extent.
// Single-row domains use a 256x1 workgroup.
func NewComputeSize(domain Size) ComputeSize {
	local := DefaultLocalSize
	if domain.Height == 1 {
		local = RowLocalSize
	}
	return NewComputeSizeLocal(domain, local)
}

// NewComputeSizeLocal tiles domain with an explicit workgroup extent.
func NewComputeSizeLocal(domain, local Size) ComputeSize {
	return ComputeSize{
		Domain:    domain,
		LocalSize: local,
		WorkSize: Size{
			Width:  ceilDiv(domain.Width, local.Width),
			Height: ceilDiv(domain.Height, local.Height),
		},
	}
}

// Workgroups returns the total number of workgroups.
func (c ComputeSize) Workgroups() int {
	return c.WorkSize.Cells()
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
