// Package quant is the public API for the ultra-low-bit weight and
// activation codecs: row-batch quantize, dequantize, and fused dot product
// over the packed block formats implemented in internal/kernels.
package quant

import (
	"fmt"

	"ggquant/internal/kernels"
)

// BlockType names one of the packed block formats this package supports.
type BlockType int

const (
	BlockIQ1BN BlockType = iota
	BlockIQ2BN
	BlockIQ4K
	BlockIQ2K
	BlockQ8K64
	BlockQ8K
)

func (t BlockType) String() string {
	switch t {
	case BlockIQ1BN:
		return "IQ1_BN"
	case BlockIQ2BN:
		return "IQ2_BN"
	case BlockIQ4K:
		return "IQ4_K"
	case BlockIQ2K:
		return "IQ2_K"
	case BlockQ8K64:
		return "Q8_K64"
	case BlockQ8K:
		return "Q8_K"
	default:
		return fmt.Sprintf("BlockType(%d)", int(t))
	}
}

// SuperBlockLanes returns the number of lanes (floats) one super-block of t
// covers. Row lengths for t must be a multiple of this value.
func SuperBlockLanes(t BlockType) int {
	switch t {
	case BlockIQ1BN, BlockIQ2BN, BlockQ8K64:
		return kernels.QKIQ1BN
	case BlockIQ4K, BlockIQ2K, BlockQ8K:
		return kernels.QKK
	default:
		panic(fmt.Sprintf("quant: unknown block type %v", t))
	}
}

// blockByteSize returns the packed size in bytes of one super-block of t.
// BlockQ8K64 has no fixed per-block size (§4.2's block spans the whole row)
// and is rejected here; callers use Q8K64RowSize instead.
func blockByteSize(t BlockType) int {
	switch t {
	case BlockIQ1BN:
		return kernels.BlockIQ1BNSize
	case BlockIQ2BN:
		return kernels.BlockIQ2BNSize
	case BlockIQ4K:
		return kernels.BlockIQ4KSize
	case BlockIQ2K:
		return kernels.BlockIQ2KSize
	case BlockQ8K:
		return kernels.BlockQ8KSize
	default:
		panic(fmt.Sprintf("quant: block type %v has no fixed block size", t))
	}
}

// Q8K64RowSize returns the packed byte size of a Q8_K64 block quantizing a
// row of n floats.
func Q8K64RowSize(n int) int {
	return kernels.Q8K64Size(n)
}

// RowSize returns the packed byte size of a row of n floats under codec t.
func RowSize(t BlockType, n int) (int, error) {
	if t == BlockQ8K64 {
		if n%kernels.QKQ8K64 != 0 {
			return 0, fmt.Errorf("quant: row length %d not a multiple of %d for %v", n, kernels.QKQ8K64, t)
		}
		return Q8K64RowSize(n), nil
	}
	lanes := SuperBlockLanes(t)
	if n%lanes != 0 {
		return 0, fmt.Errorf("quant: row length %d not a multiple of %d for %v", n, lanes, t)
	}
	return (n / lanes) * blockByteSize(t), nil
}

// QuantizeRow quantizes one row of n floats into dst using codec t. qw is an
// optional importance vector, meaningful only for BlockIQ4K/BlockIQ2K (nil
// for every other codec, per §6). Returns the number of bytes written.
func QuantizeRow(t BlockType, dst []byte, src []float32, qw []float32) (int, error) {
	if _, err := RowSize(t, len(src)); err != nil {
		return 0, err
	}
	switch t {
	case BlockIQ1BN:
		return kernels.QuantizeRowIQ1BN(dst, src), nil
	case BlockIQ2BN:
		return kernels.QuantizeRowIQ2BN(dst, src), nil
	case BlockIQ4K:
		return kernels.QuantizeRowIQ4K(dst, src, qw), nil
	case BlockIQ2K:
		return kernels.QuantizeRowIQ2K(dst, src, qw), nil
	case BlockQ8K64:
		return kernels.QuantizeRowQ8K64(dst, src), nil
	case BlockQ8K:
		return kernels.QuantizeRowQ8K(dst, src), nil
	default:
		return 0, fmt.Errorf("quant: unknown block type %v", t)
	}
}

// QuantizeRows quantizes nrows independent rows of nPerRow floats each into
// dst, fanning the work out across internal/kernels.ParallelRows: each row
// is an independent leaf task with no cross-row state (§5). qw, if
// non-nil, is one weight per lane shared across every row (§6). Returns the
// total number of bytes written.
func QuantizeRows(t BlockType, dst []byte, src []float32, nrows, nPerRow int, qw []float32) (int, error) {
	rowBytes, err := RowSize(t, nPerRow)
	if err != nil {
		return 0, err
	}
	if len(src) < nrows*nPerRow {
		return 0, fmt.Errorf("quant: src too short: need %d floats, have %d", nrows*nPerRow, len(src))
	}
	if len(dst) < nrows*rowBytes {
		return 0, fmt.Errorf("quant: dst too short: need %d bytes, have %d", nrows*rowBytes, len(dst))
	}

	err = kernels.ParallelRows(nrows, func(row int) error {
		rowSrc := src[row*nPerRow : (row+1)*nPerRow]
		rowDst := dst[row*rowBytes : (row+1)*rowBytes]
		_, rerr := QuantizeRow(t, rowDst, rowSrc, qw)
		return rerr
	})
	if err != nil {
		return 0, err
	}
	return nrows * rowBytes, nil
}

// Dequantize reconstructs the row packed by QuantizeRow into dst.
func Dequantize(t BlockType, dst []float32, src []byte) {
	switch t {
	case BlockIQ1BN:
		kernels.DequantizeRowIQ1BN(dst, src)
	case BlockIQ2BN:
		kernels.DequantizeRowIQ2BN(dst, src)
	case BlockIQ4K:
		kernels.DequantizeRowIQ4K(dst, src)
	case BlockIQ2K:
		kernels.DequantizeRowIQ2K(dst, src)
	case BlockQ8K64:
		kernels.DequantizeRowQ8K64(dst, src)
	case BlockQ8K:
		kernels.DequantizeRowQ8K(dst, src)
	default:
		panic(fmt.Sprintf("quant: unknown block type %v", t))
	}
}

// ActivationFor returns the activation codec paired with weight codec t for
// Dot, per §2's component share table.
func ActivationFor(t BlockType) (BlockType, error) {
	switch t {
	case BlockIQ1BN, BlockIQ2BN:
		return BlockQ8K64, nil
	case BlockIQ4K, BlockIQ2K:
		return BlockQ8K, nil
	default:
		return 0, fmt.Errorf("quant: block type %v has no paired activation codec", t)
	}
}

// Dot computes the fused inner product of a weight row packed in codec t
// against an activation row packed in t's paired activation codec (see
// ActivationFor), without materializing either dequantized vector.
func Dot(t BlockType, n int, weightBlocks, actBlocks []byte) (float32, error) {
	switch t {
	case BlockIQ1BN:
		return kernels.DotIQ1BNQ8K64(n, weightBlocks, actBlocks), nil
	case BlockIQ2BN:
		return kernels.DotIQ2BNQ8K64(n, weightBlocks, actBlocks), nil
	case BlockIQ4K:
		return kernels.DotIQ4KQ8K(n, weightBlocks, actBlocks), nil
	case BlockIQ2K:
		return kernels.DotIQ2KQ8K(n, weightBlocks, actBlocks), nil
	default:
		return 0, fmt.Errorf("quant: block type %v has no fused dot product", t)
	}
}
