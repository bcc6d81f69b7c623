// Package fingerprint derives deterministic cache keys from request identity.
package fingerprint

import (
	"encoding/binary"
	"math"
)

// Size is the digest length in bytes (128 bits).
const Size = 16

// blockSize is the digest block length in bytes (512 bits).
const blockSize = 64

// Initial register values per RFC 1321 §3.3.
const (
	init0 = 0x67452301
	init1 = 0xefcdab89
	init2 = 0x98badcfe
	init3 = 0x10325476
)

// sineTable holds the 64 additive constants K[i] = floor(2^32 * |sin(i+1)|).
var sineTable [64]uint32

// shiftTable holds the per-step left-rotation amounts, four per round group.
var shiftTable = [64]uint32{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

func init() {
	for i := range sineTable {
		sineTable[i] = uint32(math.Floor(math.Abs(math.Sin(float64(i+1))) * (1 << 32)))
	}
}

// Sum computes the 128-bit digest of data per RFC 1321.
//
// The digest is used purely for key-space spreading in a file system
// namespace, not for security; collision resistance against an adversary is
// not required here.
func Sum(data []byte) [Size]byte {
	a0, b0, c0, d0 := uint32(init0), uint32(init1), uint32(init2), uint32(init3)

	// Process every complete block of the message.
	full := len(data) / blockSize * blockSize
	for i := 0; i < full; i += blockSize {
		a0, b0, c0, d0 = block(a0, b0, c0, d0, data[i:i+blockSize])
	}

	// Pad the tail: a single 0x80 byte, zeros up to 56 mod 64, then the
	// original length in bits as a little-endian 64-bit trailer.
	var tail [blockSize * 2]byte
	rem := copy(tail[:], data[full:])
	tail[rem] = 0x80
	padded := tail[:blockSize]
	if rem >= blockSize-8 {
		padded = tail[:blockSize*2]
	}
	binary.LittleEndian.PutUint64(padded[len(padded)-8:], uint64(len(data))<<3)
	for i := 0; i < len(padded); i += blockSize {
		a0, b0, c0, d0 = block(a0, b0, c0, d0, padded[i:i+blockSize])
	}

	var digest [Size]byte
	binary.LittleEndian.PutUint32(digest[0:], a0)
	binary.LittleEndian.PutUint32(digest[4:], b0)
	binary.LittleEndian.PutUint32(digest[8:], c0)
	binary.LittleEndian.PutUint32(digest[12:], d0)
	return digest
}

// block runs the 64-step compression function over one 512-bit block.
func block(a0, b0, c0, d0 uint32, p []byte) (uint32, uint32, uint32, uint32) {
	var m [16]uint32
	for i := range m {
		m[i] = binary.LittleEndian.Uint32(p[i*4:])
	}

	a, b, c, d := a0, b0, c0, d0
	for i := 0; i < 64; i++ {
		var f, g uint32
		switch {
		case i < 16:
			f = (b & c) | (^b & d)
			g = uint32(i)
		case i < 32:
			f = (d & b) | (^d & c)
			g = uint32(5*i+1) % 16
		case i < 48:
			f = b ^ c ^ d
			g = uint32(3*i+5) % 16
		default:
			f = c ^ (b | ^d)
			g = uint32(7*i) % 16
		}

		f += a + sineTable[i] + m[g]
		a, d, c = d, c, b
		s := shiftTable[i]
		b += f<<s | f>>(32-s)
	}

	return a0 + a, b0 + b, c0 + c, d0 + d
}
