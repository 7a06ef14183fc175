package record

import (
	"math/bits"

	"github.com/klauspost/crc32"
)

// Checksum returns the CRC-32/CKSUM of b: polynomial 0x04C11DB7 processed
// MSB-first, zero initial value, final XOR 0xFFFFFFFF.
//
// The IEEE table is the reflected form of the same polynomial, so feeding it
// bit-reversed bytes and reversing the register yields the non-reflected CRC.
func Checksum(b []byte) uint32 {
	var chunk [512]byte
	crc := uint32(0xFFFFFFFF) // crc32.Update inverts on entry: register starts at 0
	for len(b) > 0 {
		n := copy(chunk[:], b)
		for i := range n {
			chunk[i] = bits.Reverse8(chunk[i])
		}
		crc = crc32.Update(crc, crc32.IEEETable, chunk[:n])
		b = b[n:]
	}
	return bits.Reverse32(crc)
}
