package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIQ4KByteSizeContract(t *testing.T) {
	nblocks := 2
	src := make([]float32, nblocks*QKK)
	dst := make([]byte, nblocks*BlockIQ4KSize)
	written := QuantizeRowIQ4K(dst, src, nil)
	require.Equal(t, nblocks*BlockIQ4KSize, written)
}

func TestIQ4KAllZero(t *testing.T) {
	src := make([]float32, QKK)
	dst := make([]byte, BlockIQ4KSize)
	QuantizeRowIQ4K(dst, src, nil)
	out := make([]float32, QKK)
	DequantizeRowIQ4K(out, dst)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestIQ4KSingleSpike(t *testing.T) {
	// Scenario S5: one dominant lane, all others zero. The super-block scale
	// search must still recover the spike's magnitude within one codebook
	// step.
	src := make([]float32, QKK)
	src[17] = 6.0
	dst := make([]byte, BlockIQ4KSize)
	QuantizeRowIQ4K(dst, src, nil)

	out := make([]float32, QKK)
	DequantizeRowIQ4K(out, dst)

	assert.InDelta(t, 6.0, out[17], 0.75)
	for i, v := range out {
		if i == 17 {
			continue
		}
		assert.InDelta(t, 0, v, 0.75, "lane %d", i)
	}
}

func TestIQ4KIdempotentRequantization(t *testing.T) {
	src := make([]float32, QKK)
	for i := range src {
		src[i] = float32((i%9)-4) * 0.3
	}
	dst1 := make([]byte, BlockIQ4KSize)
	QuantizeRowIQ4K(dst1, src, nil)
	deq := make([]float32, QKK)
	DequantizeRowIQ4K(deq, dst1)

	dst2 := make([]byte, BlockIQ4KSize)
	QuantizeRowIQ4K(dst2, deq, nil)
	deq2 := make([]float32, QKK)
	DequantizeRowIQ4K(deq2, dst2)

	for i := range deq {
		assert.InDelta(t, deq[i], deq2[i], 1e-4, "lane %d", i)
	}
}

func TestDotIQ4KQ8KEquivalence(t *testing.T) {
	src := make([]float32, QKK)
	acts := make([]float32, QKK)
	for i := range src {
		src[i] = float32((i%11)-5) * 0.4
		acts[i] = float32((i%7) - 3)
	}
	wPacked := make([]byte, BlockIQ4KSize)
	QuantizeRowIQ4K(wPacked, src, nil)
	aPacked := make([]byte, BlockQ8KSize)
	QuantizeRowQ8K(aPacked, acts)

	got := DotIQ4KQ8K(QKK, wPacked, aPacked)

	wDeq := make([]float32, QKK)
	DequantizeRowIQ4K(wDeq, wPacked)
	aDeq := make([]float32, QKK)
	DequantizeRowQ8K(aDeq, aPacked)
	want := Dot(wDeq, aDeq)

	assert.InDelta(t, want, got, 1e-2)
}
