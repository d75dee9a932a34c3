// Package binary24 reads and writes the 24-bit big-endian integers used by RTMP message headers.
package binary24

// Max is the largest value a 24-bit field can carry. In a timestamp field it marks an extended timestamp.
const Max = 0xFFFFFF

var BigEndian bigEndian

type bigEndian struct{}

func (bigEndian) Uint24(b []byte) uint32 {
	_ = b[2] // early bounds check to guarantee safety of reads below
	return uint32(b[2]) | uint32(b[1])<<8 | uint32(b[0])<<16
}

// PutUint24 stores the low 24 bits of v in b. Higher bits are dropped.
func (bigEndian) PutUint24(b []byte, v uint32) {
	_ = b[2] // early bounds check to guarantee safety of writes below
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func (bigEndian) AppendUint24(b []byte, v uint32) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}
