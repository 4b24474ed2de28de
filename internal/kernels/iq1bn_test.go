package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIQ1BNDigitRoundTrip(t *testing.T) {
	// Property 4: for every idx in [0,243), encode then decode each of the
	// five digits recovers the original ternary sequence.
	for idx := 0; idx < 243; idx++ {
		b := byte((256*idx + 242) / 243)
		digits := [5]int{idx % 3, (idx / 3) % 3, (idx / 9) % 3, (idx / 27) % 3, (idx / 81) % 3}
		for j, want := range digits {
			got := iq1bnDigit(iq1bnKMult[j], b)
			assert.InDelta(t, float32(want-1), got, 1e-9, "idx=%d digit=%d", idx, j)
		}
	}
}

func TestIQ1BNAllZeroBlock(t *testing.T) {
	src := make([]float32, QKIQ1BN)
	dst := make([]byte, BlockIQ1BNSize)
	n := QuantizeRowIQ1BN(dst, src)
	assert.Equal(t, BlockIQ1BNSize, n)
	for i := 0; i < 12; i++ {
		assert.Equal(t, byte(128), dst[i])
	}
	assert.Equal(t, byte(128), dst[12])

	out := make([]float32, QKIQ1BN)
	DequantizeRowIQ1BN(out, dst)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestIQ1BNAllPlusOneBlock(t *testing.T) {
	src := make([]float32, QKIQ1BN)
	for i := range src {
		src[i] = 1.0
	}
	dst := make([]byte, BlockIQ1BNSize)
	QuantizeRowIQ1BN(dst, src)
	for i := 0; i < 12; i++ {
		assert.Equal(t, byte(255), dst[i])
	}
	assert.Equal(t, byte(255), dst[12])

	out := make([]float32, QKIQ1BN)
	DequantizeRowIQ1BN(out, dst)
	for _, v := range out {
		assert.Equal(t, float32(1), v)
	}
}

func TestIQ1BNByteSizeContract(t *testing.T) {
	n := 4 * QKIQ1BN
	src := make([]float32, n)
	dst := make([]byte, n/QKIQ1BN*BlockIQ1BNSize)
	written := QuantizeRowIQ1BN(dst, src)
	assert.Equal(t, len(dst), written)
}
