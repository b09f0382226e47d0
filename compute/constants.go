package compute

import (
	"encoding/binary"
	"math"
)

// Constants is the packed block of per-dispatch kernel parameters that
// follows the domain header. Values are little-endian 4-byte words.
type Constants []byte

// Float32s packs float32 values.
func Float32s(values ...float32) Constants {
	c := make(Constants, 0, 4*len(values))
	for _, v := range values {
		c = binary.LittleEndian.AppendUint32(c, math.Float32bits(v))
	}
	return c
}

// AppendInt32 returns c with v appended.
func (c Constants) AppendInt32(v int32) Constants {
	return binary.LittleEndian.AppendUint32(c, uint32(v))
}

// AppendFloat32 returns c with v appended.
func (c Constants) AppendFloat32(v float32) Constants {
	return binary.LittleEndian.AppendUint32(c, math.Float32bits(v))
}

// Words returns the number of 4-byte words in c.
func (c Constants) Words() int {
	return len(c) / 4
}

// Float32 returns word i as a float32, or 0 when out of range.
func (c Constants) Float32(i int) float32 {
	if (i+1)*4 > len(c) || i < 0 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(c[i*4:]))
}

// Int32 returns word i as an int32, or 0 when out of range.
func (c Constants) Int32(i int) int32 {
	if (i+1)*4 > len(c) || i < 0 {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(c[i*4:]))
}
