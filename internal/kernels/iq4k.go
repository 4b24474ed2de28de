package kernels

import (
	"encoding/binary"
	"math"

	"github.com/samber/lo"
)

// QKK is the super-block lane count shared by IQ4_K and IQ2_K.
const QKK = 256

const iq4kSubblocks = QKK / 16 // 16 sub-blocks of 16 lanes each

// BlockIQ4KSize is the packed size in bytes of one IQ4_K super-block:
// FP16 d (2) + extra (2) + scales_h (4) + scales_l (8) + qs (128).
const BlockIQ4KSize = 2 + 2 + 4 + 8 + 128

// iq4kNTry is the default scale-search sweep radius, overridable via
// BITNET_IQ4K_NTRY for experimentation.
var iq4kNTry = envInt("BITNET_IQ4K_NTRY", 7)

// iq4kSigma2 computes §4.4's weighting variance over a full 256-lane
// super-block (sigma2 = 2*(sum x^2)/256), shared by every sub-block's
// iq4kWeights call.
func iq4kSigma2(xb []float32) float32 {
	var sumx2 float64
	for _, v := range xb {
		sumx2 += float64(v) * float64(v)
	}
	return float32(2 * sumx2 / QKK)
}

func iq4kWeights(xsb []float32, qw []float32, sigma2 float32) []float32 {
	w := make([]float32, len(xsb))
	for l, v := range xsb {
		if qw != nil {
			w[l] = qw[l] * float32(math.Sqrt(float64(sigma2+v*v)))
		} else {
			w[l] = v * v
		}
	}
	return w
}

// iq4kProject evaluates the weighted projection of a 16-lane sub-block onto
// codebook under inverse scale id, writing the chosen index per lane into q.
func iq4kProject(x, w []float32, codebook []int8, id float32, q *[16]int8) (sumqx, sumq2 float32) {
	for l := 0; l < 16; l++ {
		li := bestIndexIQ4NL(codebook, id*x[l])
		qv := codebook[li]
		q[l] = int8(li)
		sumqx += w[l] * float32(qv) * x[l]
		sumq2 += w[l] * float32(qv) * float32(qv)
	}
	return
}

// iq4kSearchSubblock implements §4.4's per-sub-block scale search: both
// polarities of the seed scale are tried, both codebooks (baseline and
// shifted) are swept across itry in [-ntry, ntry], and the best combination
// wins strictly on figure of merit sumqx^2/sumq2 (mirroring the source's
// control flow per the Open Question resolution in DESIGN.md).
func iq4kSearchSubblock(x, w []float32, ntry int) (d float32, shifted bool, idx [16]int8) {
	var amax, max float32
	for _, v := range x {
		av := v
		if av < 0 {
			av = -av
		}
		if av > amax {
			amax = av
			max = v
		}
	}
	if amax == 0 {
		return 0, false, idx
	}

	bestMerit := float32(-1)
	for _, shift := range [2]bool{false, true} {
		codebook := iq4kValues[:16]
		if shift {
			codebook = iq4kValues[16:]
		}
		for _, sign := range [2]float32{1, -1} {
			m := sign * max
			if m == 0 {
				continue
			}
			dSeed := -m / float32(codebook[0])
			var q [16]int8
			sx, s2 := iq4kProject(x, w, codebook, 1/dSeed, &q)
			if s2 > 0 {
				merit := sx * sx / s2
				if merit > bestMerit {
					bestMerit, d, shifted, idx = merit, sx/s2, shift, q
				}
			}
			for itry := -ntry; itry <= ntry; itry++ {
				id := (float32(itry) + float32(codebook[0])) / m
				var qq [16]int8
				sx, s2 := iq4kProject(x, w, codebook, id, &qq)
				if s2 <= 0 {
					continue
				}
				merit := sx * sx / s2
				if merit > bestMerit {
					bestMerit, d, shifted, idx = merit, sx/s2, shift, qq
				}
			}
		}
	}
	return
}

func iq4kScaleNibbles(ib int, l6 byte, scalesL []byte, scalesH []byte) {
	low := l6 & 0x0f
	high := (l6 >> 4) & 0x03
	if ib%2 == 0 {
		scalesL[ib/2] = (scalesL[ib/2] &^ 0x0f) | low
	} else {
		scalesL[ib/2] = (scalesL[ib/2] &^ 0xf0) | (low << 4)
	}
	scalesH[ib/4] |= high << uint(2*(ib%4))
}

func iq4kScaleNibblesRead(ib int, scalesL []byte, scalesH []byte) int {
	var low, high byte
	if ib%2 == 0 {
		low = scalesL[ib/2] & 0x0f
	} else {
		low = (scalesL[ib/2] >> 4) & 0x0f
	}
	high = (scalesH[ib/4] >> uint(2*(ib%4))) & 0x03
	return int(low|(high<<4)) - 32
}

// QuantizeRowIQ4K quantizes src (length a multiple of QKK) into dst, using
// an optional importance vector qw (nil for none, otherwise one weight per
// lane of src, indexed in step with src), and returns the number of bytes
// written.
func QuantizeRowIQ4K(dst []byte, src []float32, qw []float32) int {
	n := len(src)
	if n%QKK != 0 {
		panic("kernels: QuantizeRowIQ4K: length not a multiple of 256")
	}
	nblock := n / QKK
	if len(dst) < nblock*BlockIQ4KSize {
		panic("kernels: QuantizeRowIQ4K: dst too small")
	}

	for b := 0; b < nblock; b++ {
		xb := src[b*QKK : (b+1)*QKK]
		var qwb []float32
		if qw != nil {
			qwb = qw[b*QKK : (b+1)*QKK]
		}

		sigma2 := iq4kSigma2(xb)

		var scales [iq4kSubblocks]float32
		var shiftedFlags [iq4kSubblocks]bool
		var idxs [iq4kSubblocks][16]int8
		var weights [iq4kSubblocks][]float32
		for ib := 0; ib < iq4kSubblocks; ib++ {
			xsb := xb[ib*16 : (ib+1)*16]
			var wqw []float32
			if qwb != nil {
				wqw = qwb[ib*16 : (ib+1)*16]
			}
			w := iq4kWeights(xsb, wqw, sigma2)
			weights[ib] = w
			d, shifted, idx := iq4kSearchSubblock(xsb, w, iq4kNTry)
			scales[ib] = d
			shiftedFlags[ib] = shifted
			idxs[ib] = idx
		}

		var dmax, dmaxAbs float32
		for ib := 0; ib < iq4kSubblocks; ib++ {
			a := scales[ib]
			if a < 0 {
				a = -a
			}
			if a > dmaxAbs {
				dmaxAbs = a
				dmax = scales[ib]
			}
		}
		var D float32
		var ls [iq4kSubblocks]int
		if dmax != 0 {
			D = -dmax / 32
			for ib := 0; ib < iq4kSubblocks; ib++ {
				ls[ib] = lo.Clamp(int(nearestInt(scales[ib]/D)), -32, 31)
			}
		}

		qs := make([]byte, 128)
		var sumqxAll, sumq2All float32
		for ib := 0; ib < iq4kSubblocks; ib++ {
			dl := D * float32(ls[ib])
			codebook := iq4kValues[:16]
			if shiftedFlags[ib] {
				codebook = iq4kValues[16:]
			}
			xsb := xb[ib*16 : (ib+1)*16]
			w := weights[ib]
			group, within := ib/2, ib%2
			for l := 0; l < 16; l++ {
				var li int
				if dl != 0 {
					li = bestIndexIQ4NL(codebook, xsb[l]/dl)
				} else {
					li = bestIndexIQ4NL(codebook, 0)
				}
				q := float32(codebook[li]) * float32(ls[ib])
				sumqxAll += w[l] * q * xsb[l]
				sumq2All += w[l] * q * q
				byteOff := group*16 + l
				if within == 0 {
					qs[byteOff] = (qs[byteOff] &^ 0x0f) | byte(li)
				} else {
					qs[byteOff] = (qs[byteOff] &^ 0xf0) | byte(li<<4)
				}
			}
		}
		if sumq2All > 0 {
			D = sumqxAll / sumq2All
		}

		var scalesL [8]byte
		var scalesH [4]byte
		var extra uint16
		for ib := 0; ib < iq4kSubblocks; ib++ {
			l6 := byte(ls[ib] + 32)
			iq4kScaleNibbles(ib, l6, scalesL[:], scalesH[:])
			if shiftedFlags[ib] {
				extra |= 1 << uint(ib)
			}
		}

		blk := dst[b*BlockIQ4KSize : (b+1)*BlockIQ4KSize]
		binary.LittleEndian.PutUint16(blk[0:], float32ToFloat16(D))
		binary.LittleEndian.PutUint16(blk[2:], extra)
		copy(blk[4:8], scalesH[:])
		copy(blk[8:16], scalesL[:])
		copy(blk[16:144], qs)
	}
	return nblock * BlockIQ4KSize
}

// DequantizeRowIQ4K reconstructs the row packed by QuantizeRowIQ4K.
func DequantizeRowIQ4K(dst []float32, src []byte) {
	nblock := len(src) / BlockIQ4KSize
	for b := 0; b < nblock; b++ {
		blk := src[b*BlockIQ4KSize : (b+1)*BlockIQ4KSize]
		D := float16ToFloat32Kernels(binary.LittleEndian.Uint16(blk[0:]))
		extra := binary.LittleEndian.Uint16(blk[2:])
		scalesH := blk[4:8]
		scalesL := blk[8:16]
		qs := blk[16:144]
		out := dst[b*QKK : (b+1)*QKK]

		for ib := 0; ib < iq4kSubblocks; ib++ {
			l := iq4kScaleNibblesRead(ib, scalesL, scalesH)
			dl := D * float32(l)
			codebook := iq4kValues[:16]
			if extra&(1<<uint(ib)) != 0 {
				codebook = iq4kValues[16:]
			}
			group, within := ib/2, ib%2
			for l := 0; l < 16; l++ {
				byteOff := group*16 + l
				var idx byte
				if within == 0 {
					idx = qs[byteOff] & 0x0f
				} else {
					idx = (qs[byteOff] >> 4) & 0x0f
				}
				out[ib*16+l] = dl * float32(codebook[idx])
			}
		}
	}
}

// DotIQ4KQ8K computes the inner product of an IQ4_K-packed weight row
// against a Q8_K-packed activation row. Grounded on §4.4's "Fused dot with
// Q8_K": per 32-lane group, both sub-scales and codebook choices are
// decoded, each accumulated separately, then combined.
func DotIQ4KQ8K(n int, weightBlocks, actBlocks []byte) float32 {
	var s float32
	if iqkMulMat(n, IQKTypeIQ4K, weightBlocks, IQKTypeQ8K, actBlocks, &s) {
		return s
	}
	nblock := n / QKK
	var sumf float32
	for i := 0; i < nblock; i++ {
		wblk := weightBlocks[i*BlockIQ4KSize : (i+1)*BlockIQ4KSize]
		ablk := actBlocks[i*BlockQ8KSize : (i+1)*BlockQ8KSize]

		D := float16ToFloat32Kernels(binary.LittleEndian.Uint16(wblk[0:]))
		extra := binary.LittleEndian.Uint16(wblk[2:])
		scalesH := wblk[4:8]
		scalesL := wblk[8:16]
		qs := wblk[16:144]
		yd := math.Float32frombits(binary.LittleEndian.Uint32(ablk[0:]))
		q8 := ablk[4:]

		var sum int32
		for ib32 := 0; ib32 < 8; ib32++ {
			ib1, ib2 := 2*ib32, 2*ib32+1
			ls1 := iq4kScaleNibblesRead(ib1, scalesL, scalesH)
			ls2 := iq4kScaleNibblesRead(ib2, scalesL, scalesH)
			v1 := iq4kValues[:16]
			if extra&(1<<uint(ib1)) != 0 {
				v1 = iq4kValues[16:]
			}
			v2 := iq4kValues[:16]
			if extra&(1<<uint(ib2)) != 0 {
				v2 = iq4kValues[16:]
			}

			base := ib32 * 16
			var sumi1, sumi2 int32
			for l := 0; l < 16; l++ {
				qv := qs[base+l]
				lo, hi := qv&0x0f, (qv>>4)&0x0f
				sumi1 += int32(int8(q8[ib1*16+l])) * int32(v1[lo])
				sumi2 += int32(int8(q8[ib2*16+l])) * int32(v2[hi])
			}
			sum += int32(ls1)*sumi1 + int32(ls2)*sumi2
		}
		sumf += D * yd * float32(sum)
	}
	return sumf
}
