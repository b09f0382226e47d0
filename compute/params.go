package compute

import "encoding/binary"

// Parameter block layout shared by the GPU backends, all words
// little-endian:
//
//	[0:16)   domain width, domain height (int32), two padding words
//	[16:..)  per image slot: width, height (int32), address mode, border bits
//	[..:..)  kernel constants, padded to a multiple of 16 bytes
const (
	paramsHeaderSize = 16
	paramsImageSize  = 16
)

// ParamsSize returns the byte size of the parameter block of k.
func ParamsSize(k *Kernel) int {
	n := paramsHeaderSize + paramsImageSize*len(k.Images()) + 4*k.constants
	return (n + 15) &^ 15
}

// EncodeParams packs the parameter block of one dispatch.
func EncodeParams(k *Kernel, domain Size, bindings []Binding, constants Constants) []byte {
	out := make([]byte, 0, ParamsSize(k))
	out = binary.LittleEndian.AppendUint32(out, uint32(int32(domain.Width)))
	out = binary.LittleEndian.AppendUint32(out, uint32(int32(domain.Height)))
	out = binary.LittleEndian.AppendUint32(out, 0)
	out = binary.LittleEndian.AppendUint32(out, 0)
	for _, i := range k.Images() {
		b := bindings[i]
		size := b.buffer.Size()
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(size.Width)))
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(size.Height)))
		out = binary.LittleEndian.AppendUint32(out, uint32(b.sampler.Address))
		out = binary.LittleEndian.AppendUint32(out, b.sampler.BorderBits())
	}
	out = append(out, constants...)
	for len(out) < ParamsSize(k) {
		out = append(out, 0)
	}
	return out
}
