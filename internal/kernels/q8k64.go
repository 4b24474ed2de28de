package kernels

import (
	"encoding/binary"
	"math"
)

// QKQ8K64 is the sub-block stride (and minimum row length) of the Q8_K64
// activation quantizer, matching QK_IQ1BN.
const QKQ8K64 = 64

// BlockQ8K64HeaderSize is the byte size of the four sub-block scales that
// precede the packed activation bytes in a Q8_K64 block.
const BlockQ8K64HeaderSize = 4 * 4

// Q8K64Size returns the packed size in bytes of a Q8_K64 block quantizing a
// row of n floats (n must be a multiple of QKQ8K64).
func Q8K64Size(n int) int {
	return BlockQ8K64HeaderSize + n
}

// QuantizeRowQ8K64 quantizes src (length n, a multiple of QKQ8K64) into a
// single Q8_K64 block written to dst and returns the number of bytes
// written. Four sub-block absolute maxima are tracked over 16-lane stripes
// throughout the row (grounded on quantize_row_q8_K64_ref's portable,
// non-NEON branch), then every lane is quantized against its stripe's
// scale in identity order: qs[j+4*i+l] holds stripe i's l-th sample from
// the j-th 16-lane group, matching the source's portable `#else` path
// rather than the NEON branch's interleaved permutation (§6).
func QuantizeRowQ8K64(dst []byte, src []float32) int {
	n := len(src)
	if n%QKQ8K64 != 0 {
		panic("kernels: QuantizeRowQ8K64: length not a multiple of 64")
	}
	size := Q8K64Size(n)
	if len(dst) < size {
		panic("kernels: QuantizeRowQ8K64: dst too small")
	}

	var aux [4]float32
	for j := 0; j < n; j += 16 {
		for i := 0; i < 4; i++ {
			for l := 0; l < 4; l++ {
				ax := src[j+4*i+l]
				if ax < 0 {
					ax = -ax
				}
				if ax > aux[i] {
					aux[i] = ax
				}
			}
		}
	}
	var inv [4]float32
	for i := 0; i < 4; i++ {
		d := aux[i] / 127
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(d))
		if d > 0 {
			inv[i] = 1 / d
		}
	}
	qs := dst[BlockQ8K64HeaderSize:size]
	for j := 0; j < n; j += 16 {
		for i := 0; i < 4; i++ {
			for l := 0; l < 4; l++ {
				qs[j+4*i+l] = byte(int8(nearestInt(inv[i] * src[j+4*i+l])))
			}
		}
	}
	return size
}

// DequantizeRowQ8K64 reconstructs the row quantized by QuantizeRowQ8K64.
func DequantizeRowQ8K64(dst []float32, src []byte) {
	n := len(src) - BlockQ8K64HeaderSize
	var d [4]float32
	for i := 0; i < 4; i++ {
		d[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
	qs := src[BlockQ8K64HeaderSize:]
	for j := 0; j < n; j += 16 {
		for i := 0; i < 4; i++ {
			for l := 0; l < 4; l++ {
				dst[j+4*i+l] = d[i] * float32(int8(qs[j+4*i+l]))
			}
		}
	}
}
