package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIQ2BNTernaryRoundTrip(t *testing.T) {
	src := make([]float32, QKIQ1BN)
	pattern := []float32{-1, 0, 1}
	for i := range src {
		src[i] = pattern[i%3]
	}
	dst := make([]byte, BlockIQ2BNSize)
	n := QuantizeRowIQ2BN(dst, src)
	require.Equal(t, BlockIQ2BNSize, n)

	out := make([]float32, QKIQ1BN)
	DequantizeRowIQ2BN(out, dst)
	assert.Equal(t, src, out)
}

func TestIQ2BNNearZeroBand(t *testing.T) {
	src := make([]float32, QKIQ1BN)
	for i := range src {
		src[i] = 9e-7
	}
	dst := make([]byte, BlockIQ2BNSize)
	QuantizeRowIQ2BN(dst, src)
	out := make([]float32, QKIQ1BN)
	DequantizeRowIQ2BN(out, dst)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestIQ2BNByteSizeContract(t *testing.T) {
	nblocks := 5
	src := make([]float32, nblocks*QKIQ1BN)
	dst := make([]byte, nblocks*BlockIQ2BNSize)
	written := QuantizeRowIQ2BN(dst, src)
	assert.Equal(t, nblocks*BlockIQ2BNSize, written)
}

func TestDotIQ1BNQ8K64Equivalence(t *testing.T) {
	const n = 4 * QKIQ1BN
	weights := make([]float32, n)
	acts := make([]float32, n)
	for i := 0; i < n; i++ {
		weights[i] = float32((i%3)-1) * 1.0
		acts[i] = float32((i % 7)) - 3
	}

	wPacked := make([]byte, n/QKIQ1BN*BlockIQ1BNSize)
	QuantizeRowIQ1BN(wPacked, weights)
	aPacked := make([]byte, Q8K64Size(n))
	QuantizeRowQ8K64(aPacked, acts)

	got := DotIQ1BNQ8K64(n, wPacked, aPacked)

	wDeq := make([]float32, n)
	DequantizeRowIQ1BN(wDeq, wPacked)
	aDeq := make([]float32, n)
	DequantizeRowQ8K64(aDeq, aPacked)
	want := Dot(wDeq, aDeq)

	assert.InDelta(t, want, got, 1e-3)
}

func TestDotIQ2BNQ8K64Equivalence(t *testing.T) {
	const n = 4 * QKIQ1BN
	weights := make([]float32, n)
	acts := make([]float32, n)
	for i := 0; i < n; i++ {
		weights[i] = float32((i%3)-1) * 1.0
		acts[i] = float32((i % 5)) - 2
	}

	wPacked := make([]byte, n/QKIQ1BN*BlockIQ2BNSize)
	QuantizeRowIQ2BN(wPacked, weights)
	aPacked := make([]byte, Q8K64Size(n))
	QuantizeRowQ8K64(aPacked, acts)

	got := DotIQ2BNQ8K64(n, wPacked, aPacked)

	wDeq := make([]float32, n)
	DequantizeRowIQ2BN(wDeq, wPacked)
	aDeq := make([]float32, n)
	DequantizeRowQ8K64(aDeq, aPacked)
	want := Dot(wDeq, aDeq)

	assert.InDelta(t, want, got, 1e-3)
}
