package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQ8KRoundTrip(t *testing.T) {
	src := make([]float32, QKK)
	for i := range src {
		src[i] = float32(i-128) / 4
	}
	dst := make([]byte, BlockQ8KSize)
	n := QuantizeRowQ8K(dst, src)
	require.Equal(t, BlockQ8KSize, n)

	out := make([]float32, QKK)
	DequantizeRowQ8K(out, dst)
	for i, v := range out {
		assert.InDelta(t, src[i], v, 0.3, "lane %d", i)
	}
}

func TestQ8KAllZero(t *testing.T) {
	src := make([]float32, QKK)
	dst := make([]byte, BlockQ8KSize)
	QuantizeRowQ8K(dst, src)
	out := make([]float32, QKK)
	DequantizeRowQ8K(out, dst)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestQ8KByteSizeContract(t *testing.T) {
	nblocks := 3
	src := make([]float32, nblocks*QKK)
	dst := make([]byte, nblocks*BlockQ8KSize)
	written := QuantizeRowQ8K(dst, src)
	assert.Equal(t, nblocks*BlockQ8KSize, written)
}
