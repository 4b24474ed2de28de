package kernels

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/samber/lo"
)

// BlockIQ2KSize is the packed size in bytes of one IQ2_K super-block:
// FP16 d (2) + extra (2) + scales (8) + qs (64).
const BlockIQ2KSize = 2 + 2 + 8 + QKK/4

// iq2kSigma2 computes §4.5's weighting variance over a full 256-lane
// super-block (sigma2 = 1.5*(sum x^2)/256), shared by every sub-block's
// iq2kWeights call.
func iq2kSigma2(xb []float32) float32 {
	var sumx2 float64
	for _, v := range xb {
		sumx2 += float64(v) * float64(v)
	}
	return float32(1.5 * sumx2 / QKK)
}

func iq2kWeights(xsb []float32, qw []float32, sigma2 float32) []float32 {
	w := make([]float32, len(xsb))
	for l, v := range xsb {
		if qw != nil {
			w[l] = qw[l] * float32(math.Sqrt(float64(sigma2+v*v)))
		} else {
			w[l] = 0.25*sigma2 + v*v
		}
	}
	return w
}

// iq2kSearchSubblock implements §4.5's breakpoint search: the 16 lanes are
// sorted ascending, then three breakpoints partition the sorted order into
// four contiguous runs assigned to the 4-entry codebook in either direction,
// for both codebook variants. Prefix sums make every (i1,i2,i3) candidate an
// O(1) evaluation. Returns the best projection scale, whether the shifted
// codebook won, and the per-lane codebook index (0..3) in original order.
func iq2kSearchSubblock(x, w []float32) (d float32, shifted bool, idx [16]byte) {
	var order [16]int
	for i := range order {
		order[i] = i
	}
	sort.Slice(order[:], func(a, b int) bool { return x[order[a]] < x[order[b]] })

	var sumx, sumw [17]float32
	for k := 0; k < 16; k++ {
		o := order[k]
		sumx[k+1] = sumx[k] + w[o]*x[o]
		sumw[k+1] = sumw[k] + w[o]
	}

	bestMerit := float32(-1)
	var bestI1, bestI2, bestI3 int
	var bestRev bool

	for _, variant := range [2][]int8{iq2nlValues[:4], iq2nlValues[4:]} {
		for _, rev := range [2]bool{false, true} {
			c := [4]int8{variant[0], variant[1], variant[2], variant[3]}
			if rev {
				c = [4]int8{variant[3], variant[2], variant[1], variant[0]}
			}
			for i1 := 0; i1 <= 16; i1++ {
				for i2 := i1; i2 <= 16; i2++ {
					for i3 := i2; i3 <= 16; i3++ {
						sumqx := float32(c[0])*(sumx[i1]-sumx[0]) +
							float32(c[1])*(sumx[i2]-sumx[i1]) +
							float32(c[2])*(sumx[i3]-sumx[i2]) +
							float32(c[3])*(sumx[16]-sumx[i3])
						sumq2 := float32(c[0])*float32(c[0])*(sumw[i1]-sumw[0]) +
							float32(c[1])*float32(c[1])*(sumw[i2]-sumw[i1]) +
							float32(c[2])*float32(c[2])*(sumw[i3]-sumw[i2]) +
							float32(c[3])*float32(c[3])*(sumw[16]-sumw[i3])
						if sumq2 <= 0 {
							continue
						}
						merit := sumqx * sumqx / sumq2
						if merit > bestMerit {
							bestMerit = merit
							d = sumqx / sumq2
							bestI1, bestI2, bestI3 = i1, i2, i3
							bestRev = rev
							shifted = variant[0] == iq2nlValues[4]
						}
					}
				}
			}
		}
	}

	for k := 0; k < 16; k++ {
		var interval int
		switch {
		case k < bestI1:
			interval = 0
		case k < bestI2:
			interval = 1
		case k < bestI3:
			interval = 2
		default:
			interval = 3
		}
		ci := interval
		if bestRev {
			ci = 3 - interval
		}
		idx[order[k]] = byte(ci)
	}
	return
}

// QuantizeRowIQ2K quantizes src (length a multiple of QKK) into dst, using
// an optional importance vector qw, and returns the number of bytes
// written.
func QuantizeRowIQ2K(dst []byte, src []float32, qw []float32) int {
	n := len(src)
	if n%QKK != 0 {
		panic("kernels: QuantizeRowIQ2K: length not a multiple of 256")
	}
	nblock := n / QKK
	if len(dst) < nblock*BlockIQ2KSize {
		panic("kernels: QuantizeRowIQ2K: dst too small")
	}

	const nsub = QKK / 16

	for b := 0; b < nblock; b++ {
		xb := src[b*QKK : (b+1)*QKK]
		var qwb []float32
		if qw != nil {
			qwb = qw[b*QKK : (b+1)*QKK]
		}

		sigma2 := iq2kSigma2(xb)

		var scales [nsub]float32
		var shiftedFlags [nsub]bool
		var idxs [nsub][16]byte
		for ib := 0; ib < nsub; ib++ {
			xsb := xb[ib*16 : (ib+1)*16]
			var wqw []float32
			if qwb != nil {
				wqw = qwb[ib*16 : (ib+1)*16]
			}
			w := iq2kWeights(xsb, wqw, sigma2)
			d, shifted, idx := iq2kSearchSubblock(xsb, w)
			scales[ib] = d
			shiftedFlags[ib] = shifted
			idxs[ib] = idx
		}

		var dmax float32
		for ib := 0; ib < nsub; ib++ {
			a := scales[ib]
			if a < 0 {
				a = -a
			}
			if a > dmax {
				dmax = a
			}
		}
		var D, id float32
		if dmax > 0 {
			D = dmax / 15
			id = 1 / D
		}

		var ls [nsub]int
		for ib := 0; ib < nsub; ib++ {
			ls[ib] = lo.Clamp(int(nearestInt((id*scales[ib]+15)/2)), 0, 15)
		}

		qs := make([]byte, QKK/4)
		var sumqxAll, sumq2All float32
		for ib := 0; ib < nsub; ib++ {
			codebook := iq2nlValues[:4]
			if shiftedFlags[ib] {
				codebook = iq2nlValues[4:]
			}
			xsb := xb[ib*16 : (ib+1)*16]
			ib32 := ib / 2
			sb := ib % 2
			half := ib32 / 4
			slot := ib32 % 4
			for l := 0; l < 16; l++ {
				q := float32(codebook[idxs[ib][l]]) * float32(2*ls[ib]-15)
				sumqxAll += q * xsb[l]
				sumq2All += q * q
				byteIdx := 32*half + 16*sb + l
				qs[byteIdx] |= idxs[ib][l] << uint(2*slot)
			}
		}
		if sumq2All > 0 {
			D = sumqxAll / sumq2All
		}

		var scaleBytes [nsub / 2]byte
		var extra uint16
		for ib := 0; ib < nsub; ib++ {
			if ib%2 == 0 {
				scaleBytes[ib/2] = (scaleBytes[ib/2] &^ 0x0f) | byte(ls[ib])
			} else {
				scaleBytes[ib/2] = (scaleBytes[ib/2] &^ 0xf0) | byte(ls[ib]<<4)
			}
			if shiftedFlags[ib] {
				extra |= 1 << uint(ib)
			}
		}

		blk := dst[b*BlockIQ2KSize : (b+1)*BlockIQ2KSize]
		binary.LittleEndian.PutUint16(blk[0:], float32ToFloat16(D))
		binary.LittleEndian.PutUint16(blk[2:], extra)
		copy(blk[4:4+nsub/2], scaleBytes[:])
		copy(blk[4+nsub/2:], qs)
	}
	return nblock * BlockIQ2KSize
}

// DequantizeRowIQ2K reconstructs the row packed by QuantizeRowIQ2K.
func DequantizeRowIQ2K(dst []float32, src []byte) {
	const nsub = QKK / 16
	nblock := len(src) / BlockIQ2KSize
	for b := 0; b < nblock; b++ {
		blk := src[b*BlockIQ2KSize : (b+1)*BlockIQ2KSize]
		D := float16ToFloat32Kernels(binary.LittleEndian.Uint16(blk[0:]))
		extra := binary.LittleEndian.Uint16(blk[2:])
		scaleBytes := blk[4 : 4+nsub/2]
		qs := blk[4+nsub/2:]
		out := dst[b*QKK : (b+1)*QKK]

		for ib32 := 0; ib32 < nsub/2; ib32++ {
			half := ib32 / 4
			slot := ib32 % 4
			for sb := 0; sb < 2; sb++ {
				ib := 2*ib32 + sb
				var l byte
				if ib%2 == 0 {
					l = scaleBytes[ib/2] & 0x0f
				} else {
					l = (scaleBytes[ib/2] >> 4) & 0x0f
				}
				dl := D * (2*float32(l) - 15)
				codebook := iq2nlValues[:4]
				if extra&(1<<uint(ib)) != 0 {
					codebook = iq2nlValues[4:]
				}
				for l := 0; l < 16; l++ {
					byteIdx := 32*half + 16*sb + l
					idx := (qs[byteIdx] >> uint(2*slot)) & 0x03
					out[ib*16+l] = dl * float32(codebook[idx])
				}
			}
		}
	}
}

// DotIQ2KQ8K computes the inner product of an IQ2_K-packed weight row
// against a Q8_K-packed activation row, grounded on §4.5's fused-dot
// description: per 32-lane group decode both sub-scales and codebook
// choices, accumulate each sub-block's contribution separately, combine.
func DotIQ2KQ8K(n int, weightBlocks, actBlocks []byte) float32 {
	var s float32
	if iqkMulMat(n, IQKTypeIQ2K, weightBlocks, IQKTypeQ8K, actBlocks, &s) {
		return s
	}
	const nsub = QKK / 16
	nblock := n / QKK
	var sumf float32
	for i := 0; i < nblock; i++ {
		wblk := weightBlocks[i*BlockIQ2KSize : (i+1)*BlockIQ2KSize]
		ablk := actBlocks[i*BlockQ8KSize : (i+1)*BlockQ8KSize]

		D := float16ToFloat32Kernels(binary.LittleEndian.Uint16(wblk[0:]))
		extra := binary.LittleEndian.Uint16(wblk[2:])
		scaleBytes := wblk[4 : 4+nsub/2]
		qs := wblk[4+nsub/2:]
		yd := math.Float32frombits(binary.LittleEndian.Uint32(ablk[0:]))
		q8 := ablk[4:]

		var sum int32
		for ib32 := 0; ib32 < nsub/2; ib32++ {
			half := ib32 / 4
			slot := ib32 % 4
			ib1, ib2 := 2*ib32, 2*ib32+1
			ls1 := int(scaleBytes[ib32] & 0x0f)
			ls2 := int((scaleBytes[ib32] >> 4) & 0x0f)
			v1 := iq2nlValues[:4]
			if extra&(1<<uint(ib1)) != 0 {
				v1 = iq2nlValues[4:]
			}
			v2 := iq2nlValues[:4]
			if extra&(1<<uint(ib2)) != 0 {
				v2 = iq2nlValues[4:]
			}

			var sumi1, sumi2 int32
			for l := 0; l < 16; l++ {
				b1 := 32*half + 0 + l
				b2 := 32*half + 16 + l
				idx1 := (qs[b1] >> uint(2*slot)) & 0x03
				idx2 := (qs[b2] >> uint(2*slot)) & 0x03
				sumi1 += int32(int8(q8[ib1*16+l])) * int32(v1[idx1])
				sumi2 += int32(int8(q8[ib2*16+l])) * int32(v2[idx2])
			}
			sum += int32(2*ls1-15)*sumi1 + int32(2*ls2-15)*sumi2
		}
		sumf += D * yd * float32(sum)
	}
	return sumf
}
