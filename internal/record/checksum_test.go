package record

import (
	"math/rand/v2"
	"testing"
)

// bitwiseCksum is the textbook MSB-first CRC-32/CKSUM.
func bitwiseCksum(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc ^= uint32(b) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc ^ 0xFFFFFFFF
}

func TestChecksumKnownValues(t *testing.T) {
	tests := []struct {
		input string
		want  uint32
	}{
		{"123456789", 0x765E7680},
		{"", 0xFFFFFFFF},
		{"abc123", 0xFE1E4DA9},
	}
	for _, tt := range tests {
		if got := Checksum([]byte(tt.input)); got != tt.want {
			t.Errorf("Checksum(%q) = %08x, want %08x", tt.input, got, tt.want)
		}
	}
}

func TestChecksumMatchesBitwise(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	// Sizes straddle the internal chunk boundary.
	for _, n := range []int{1, 7, 255, 511, 512, 513, 1024, 4099} {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(rng.UintN(256))
		}
		if got, want := Checksum(buf), bitwiseCksum(buf); got != want {
			t.Fatalf("len %d: Checksum = %08x, want %08x", n, got, want)
		}
	}
}

func TestChecksumAllByteValues(t *testing.T) {
	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i)
	}
	if got := Checksum(buf); got != 0x53EB78DA {
		t.Fatalf("Checksum(0..255) = %08x, want 53eb78da", got)
	}
}
