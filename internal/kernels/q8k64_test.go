package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQ8K64Linearity(t *testing.T) {
	// Scenario S4: 64 lanes ramping from -32/31.5 to 31/31.5. Quantized then
	// dequantized values must stay monotone non-decreasing and track the
	// input within one quantization step.
	src := make([]float32, QKQ8K64)
	for i := range src {
		src[i] = (float32(i) - 32) / 31.5
	}
	dst := make([]byte, Q8K64Size(QKQ8K64))
	n := QuantizeRowQ8K64(dst, src)
	require.Equal(t, Q8K64Size(QKQ8K64), n)

	out := make([]float32, QKQ8K64)
	DequantizeRowQ8K64(out, dst)

	for i, v := range out {
		assert.InDelta(t, src[i], v, 0.05, "lane %d", i)
	}
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], out[i-1], "dequantized ramp not monotone at %d", i)
	}
}

func TestQ8K64ByteSizeContract(t *testing.T) {
	n := 4 * QKQ8K64
	src := make([]float32, n)
	dst := make([]byte, Q8K64Size(n))
	written := QuantizeRowQ8K64(dst, src)
	assert.Equal(t, len(dst), written)
}

func TestQ8K64AllZero(t *testing.T) {
	src := make([]float32, QKQ8K64)
	dst := make([]byte, Q8K64Size(QKQ8K64))
	QuantizeRowQ8K64(dst, src)
	out := make([]float32, QKQ8K64)
	DequantizeRowQ8K64(out, dst)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}
