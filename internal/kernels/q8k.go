package kernels

import (
	"encoding/binary"
	"math"
)

// BlockQ8KSize is the packed size in bytes of one Q8_K super-block: one
// float32 scale plus 256 signed bytes. Unlike upstream ggml's block_q8_K,
// the per-16-lane bsums are dropped: neither IQ4_K's nor IQ2_K's fused dot
// needs a partial-sum table, since both decode their own per-lane codebook
// value before accumulating (§11).
const BlockQ8KSize = 4 + QKK

// QuantizeRowQ8K quantizes src (length a multiple of QKK) into dst as the
// companion activation format for IQ4_K/IQ2_K fused dot products, and
// returns the number of bytes written.
func QuantizeRowQ8K(dst []byte, src []float32) int {
	n := len(src)
	if n%QKK != 0 {
		panic("kernels: QuantizeRowQ8K: length not a multiple of 256")
	}
	nblock := n / QKK
	if len(dst) < nblock*BlockQ8KSize {
		panic("kernels: QuantizeRowQ8K: dst too small")
	}
	for b := 0; b < nblock; b++ {
		xb := src[b*QKK : (b+1)*QKK]
		var amax float32
		for _, v := range xb {
			av := v
			if av < 0 {
				av = -av
			}
			if av > amax {
				amax = av
			}
		}
		blk := dst[b*BlockQ8KSize : (b+1)*BlockQ8KSize]
		if amax == 0 {
			for i := range blk {
				blk[i] = 0
			}
			continue
		}
		d := amax / 127
		inv := float32(1) / d
		binary.LittleEndian.PutUint32(blk[0:], math.Float32bits(d))
		qs := blk[4:]
		for l, v := range xb {
			qs[l] = byte(int8(nearestInt(inv * v)))
		}
	}
	return nblock * BlockQ8KSize
}

// DequantizeRowQ8K reconstructs the row quantized by QuantizeRowQ8K.
func DequantizeRowQ8K(dst []float32, src []byte) {
	nblock := len(src) / BlockQ8KSize
	for b := 0; b < nblock; b++ {
		blk := src[b*BlockQ8KSize : (b+1)*BlockQ8KSize]
		d := math.Float32frombits(binary.LittleEndian.Uint32(blk[0:]))
		qs := blk[4:]
		out := dst[b*QKK : (b+1)*QKK]
		for l := 0; l < QKK; l++ {
			out[l] = d * float32(int8(qs[l]))
		}
	}
}
