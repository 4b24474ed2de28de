package kernels

import (
	"encoding/binary"
	"math"
)

// BlockIQ2BNSize is the packed size in bytes of one IQ2_BN super-block.
const BlockIQ2BNSize = 16

// niq2bnGroup is the stripe length used when co-packing the four 16-lane
// stripes of a 64-lane block byte-wise (QK_IQ1BN/4).
const niq2bnGroup = QKIQ1BN / 4

// QuantizeRowIQ2BN quantizes src (length a multiple of QKIQ1BN) into dst,
// writing BlockIQ2BNSize bytes per super-block, and returns the number of
// bytes written.
func QuantizeRowIQ2BN(dst []byte, src []float32) int {
	n := len(src)
	if n%QKIQ1BN != 0 {
		panic("kernels: QuantizeRowIQ2BN: length not a multiple of 64")
	}
	nblock := n / QKIQ1BN
	if len(dst) < nblock*BlockIQ2BNSize {
		panic("kernels: QuantizeRowIQ2BN: dst too small")
	}
	var l [QKIQ1BN]byte
	for b := 0; b < nblock; b++ {
		xb := src[b*QKIQ1BN : (b+1)*QKIQ1BN]
		for j, v := range xb {
			l[j] = byte(ternaryClass(v))
		}
		blk := dst[b*BlockIQ2BNSize : (b+1)*BlockIQ2BNSize]
		for j := 0; j < niq2bnGroup; j++ {
			blk[j] = l[j] | l[j+niq2bnGroup]<<2 | l[j+2*niq2bnGroup]<<4 | l[j+3*niq2bnGroup]<<6
		}
	}
	return nblock * BlockIQ2BNSize
}

// DequantizeRowIQ2BN reconstructs the row packed by QuantizeRowIQ2BN.
func DequantizeRowIQ2BN(dst []float32, src []byte) {
	const d1, d2, d3, d4 float32 = 1, 0.25, 0.0625, 0.015625
	const m float32 = -1
	nblock := len(src) / BlockIQ2BNSize
	for b := 0; b < nblock; b++ {
		blk := src[b*BlockIQ2BNSize : (b+1)*BlockIQ2BNSize]
		out := dst[b*QKIQ1BN : (b+1)*QKIQ1BN]
		for j := 0; j < niq2bnGroup; j++ {
			qs := blk[j]
			out[j] = d1*float32(qs&0x03) + m
			out[j+niq2bnGroup] = d2*float32(qs&0x0c) + m
			out[j+2*niq2bnGroup] = d3*float32(qs&0x30) + m
			out[j+3*niq2bnGroup] = d4*float32(qs&0xc0) + m
		}
	}
}

// DotIQ2BNQ8K64 computes the inner product of an IQ2_BN-packed weight row
// against a Q8_K64-packed activation row. Grounded on
// ggml_vec_dot_iq2_bn_q8_K64, including the sum0[j] correction term that
// folds in the codebook's implicit -1 offset without ever materializing the
// dequantized weight vector. Per §6, this scalar path assumes nrc == 1.
func DotIQ2BNQ8K64(n int, weightBlocks, actBlock []byte) float32 {
	var s float32
	if iqkMulMat(n, IQKTypeIQ2BN, weightBlocks, IQKTypeQ8K64, actBlock, &s) {
		return s
	}
	nblock := n / QKIQ1BN
	var d [4]float32
	for i := 0; i < 4; i++ {
		d[i] = math.Float32frombits(binary.LittleEndian.Uint32(actBlock[4*i:]))
	}
	q8 := actBlock[BlockQ8K64HeaderSize:]

	var sum [16]int32
	var sum0 [4]int32
	q8i := 0
	for i := 0; i < nblock; i++ {
		blk := weightBlocks[i*BlockIQ2BNSize : (i+1)*BlockIQ2BNSize]
		for j := 0; j < niq2bnGroup/4; j++ {
			for l := 0; l < 4; l++ {
				qv := blk[4*j+l]
				a0 := int32(int8(q8[q8i+4*j+l]))
				a1 := int32(int8(q8[q8i+4*j+l+niq2bnGroup]))
				a2 := int32(int8(q8[q8i+4*j+l+2*niq2bnGroup]))
				a3 := int32(int8(q8[q8i+4*j+l+3*niq2bnGroup]))
				sum[4*j+0] += a0 * int32(qv&0x03)
				sum[4*j+1] += a1 * int32(qv&0x0c)
				sum[4*j+2] += a2 * int32(qv&0x30)
				sum[4*j+3] += a3 * int32(qv&0xc0)
				sum0[j] += a0 + a1 + a2 + a3
			}
		}
		q8i += QKIQ1BN
	}

	var sumf float32
	for j := 0; j < 4; j++ {
		sumf += d[j] * (float32(sum[4*j+0]) + 0.25*float32(sum[4*j+1]) +
			0.0625*float32(sum[4*j+2]) + 0.015625*float32(sum[4*j+3]) - float32(sum0[j]))
	}
	return sumf
}
