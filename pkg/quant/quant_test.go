package quant_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggquant/internal/kernels"
	"ggquant/pkg/quant"
)

func randRow(seed int64, n int) []float32 {
	rng := rand.New(rand.NewSource(seed))
	row := make([]float32, n)
	for i := range row {
		row[i] = float32(rng.NormFloat64())
	}
	return row
}

func TestByteSizeContract(t *testing.T) {
	cases := []struct {
		t    quant.BlockType
		n    int
		want int
	}{
		{quant.BlockIQ1BN, 64, kernels.BlockIQ1BNSize},
		{quant.BlockIQ2BN, 128, 2 * kernels.BlockIQ2BNSize},
		{quant.BlockIQ4K, 256, kernels.BlockIQ4KSize},
		{quant.BlockIQ2K, 512, 2 * kernels.BlockIQ2KSize},
		{quant.BlockQ8K, 256, kernels.BlockQ8KSize},
	}
	for _, c := range cases {
		size, err := quant.RowSize(c.t, c.n)
		require.NoError(t, err)
		assert.Equal(t, c.want, size, "row size for %v n=%d", c.t, c.n)

		src := randRow(1, c.n)
		dst := make([]byte, size)
		written, err := quant.QuantizeRow(c.t, dst, src, nil)
		require.NoError(t, err)
		assert.Equal(t, c.want, written)
	}
}

func TestTernaryRoundTrip(t *testing.T) {
	src := make([]float32, 256)
	rng := rand.New(rand.NewSource(2))
	for i := range src {
		switch rng.Intn(3) {
		case 0:
			src[i] = -1
		case 1:
			src[i] = 0
		case 2:
			src[i] = 1
		}
	}

	for _, bt := range []quant.BlockType{quant.BlockIQ1BN, quant.BlockIQ2BN} {
		size, err := quant.RowSize(bt, len(src))
		require.NoError(t, err)
		packed := make([]byte, size)
		_, err = quant.QuantizeRow(bt, packed, src, nil)
		require.NoError(t, err)

		out := make([]float32, len(src))
		quant.Dequantize(bt, out, packed)
		assert.Equal(t, src, out, "%v round-trip on ternary input", bt)
	}
}

func TestNearZeroBand(t *testing.T) {
	src := make([]float32, 64)
	for i := range src {
		src[i] = 1e-7
	}
	packed := make([]byte, kernels.BlockIQ1BNSize)
	kernels.QuantizeRowIQ1BN(packed, src)
	out := make([]float32, 64)
	kernels.DequantizeRowIQ1BN(out, packed)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestIQ1BNAllZero(t *testing.T) {
	src := make([]float32, 64)
	packed := make([]byte, kernels.BlockIQ1BNSize)
	kernels.QuantizeRowIQ1BN(packed, src)
	for i := 0; i < 12; i++ {
		assert.Equal(t, byte(128), packed[i])
	}
	assert.Equal(t, byte(128), packed[12])
}

func TestIQ1BNAllPlusOne(t *testing.T) {
	src := make([]float32, 64)
	for i := range src {
		src[i] = 1.0
	}
	packed := make([]byte, kernels.BlockIQ1BNSize)
	kernels.QuantizeRowIQ1BN(packed, src)
	for i := 0; i < 12; i++ {
		assert.Equal(t, byte(255), packed[i])
	}
	assert.Equal(t, byte(255), packed[12])

	out := make([]float32, 64)
	kernels.DequantizeRowIQ1BN(out, packed)
	for _, v := range out {
		assert.Equal(t, float32(1), v)
	}
}

func TestQ8K64Linearity(t *testing.T) {
	src := make([]float32, 64)
	for i := range src {
		src[i] = float32(i-32) / 31.5
	}
	size := quant.Q8K64RowSize(64)
	packed := make([]byte, size)
	kernels.QuantizeRowQ8K64(packed, src)

	out := make([]float32, 64)
	kernels.DequantizeRowQ8K64(out, packed)
	for j := 1; j < len(out); j++ {
		assert.GreaterOrEqual(t, out[j], out[j-1])
	}
}

func dotEquivalence(t *testing.T, bt quant.BlockType, n int, tol float64) {
	t.Helper()
	weights := randRow(int64(bt)+10, n)

	actType, err := quant.ActivationFor(bt)
	require.NoError(t, err)
	acts := randRow(int64(bt)+20, n)

	wSize, err := quant.RowSize(bt, n)
	require.NoError(t, err)
	wPacked := make([]byte, wSize)
	_, err = quant.QuantizeRow(bt, wPacked, weights, nil)
	require.NoError(t, err)

	var aSize int
	if actType == quant.BlockQ8K64 {
		aSize = quant.Q8K64RowSize(n)
	} else {
		aSize, err = quant.RowSize(actType, n)
		require.NoError(t, err)
	}
	aPacked := make([]byte, aSize)
	_, err = quant.QuantizeRow(actType, aPacked, acts, nil)
	require.NoError(t, err)

	got, err := quant.Dot(bt, n, wPacked, aPacked)
	require.NoError(t, err)

	wDeq := make([]float32, n)
	quant.Dequantize(bt, wDeq, wPacked)
	aDeq := make([]float32, n)
	quant.Dequantize(actType, aDeq, aPacked)
	want := kernels.Dot(wDeq, aDeq)

	if want == 0 {
		assert.InDelta(t, 0, got, 1e-3)
		return
	}
	rel := math.Abs(float64(got-want) / float64(want))
	assert.Less(t, rel, tol, "%v dot: got=%v want=%v", bt, got, want)
}

func TestDotProductEquivalence(t *testing.T) {
	dotEquivalence(t, quant.BlockIQ1BN, 256, 1e-5)
	dotEquivalence(t, quant.BlockIQ2BN, 256, 1e-5)
	dotEquivalence(t, quant.BlockIQ4K, 256, 5e-2)
	dotEquivalence(t, quant.BlockIQ2K, 256, 5e-2)
}

func TestQuantizeRowsMatchesSequential(t *testing.T) {
	const nrows, nPerRow = 9, 256
	src := randRow(7, nrows*nPerRow)

	rowBytes, err := quant.RowSize(quant.BlockIQ4K, nPerRow)
	require.NoError(t, err)

	batched := make([]byte, nrows*rowBytes)
	written, err := quant.QuantizeRows(quant.BlockIQ4K, batched, src, nrows, nPerRow, nil)
	require.NoError(t, err)
	assert.Equal(t, nrows*rowBytes, written)

	for r := 0; r < nrows; r++ {
		rowSrc := src[r*nPerRow : (r+1)*nPerRow]
		want := make([]byte, rowBytes)
		_, err := quant.QuantizeRow(quant.BlockIQ4K, want, rowSrc, nil)
		require.NoError(t, err)
		got := batched[r*rowBytes : (r+1)*rowBytes]
		assert.Equal(t, want, got, "row %d", r)
	}
}

func TestIdempotentRequantization(t *testing.T) {
	src := randRow(3, 256)
	for _, bt := range []quant.BlockType{quant.BlockIQ4K, quant.BlockIQ2K} {
		size, err := quant.RowSize(bt, 256)
		require.NoError(t, err)

		p1 := make([]byte, size)
		_, err = quant.QuantizeRow(bt, p1, src, nil)
		require.NoError(t, err)
		d1 := make([]float32, 256)
		quant.Dequantize(bt, d1, p1)

		p2 := make([]byte, size)
		_, err = quant.QuantizeRow(bt, p2, d1, nil)
		require.NoError(t, err)
		d2 := make([]float32, 256)
		quant.Dequantize(bt, d2, p2)

		for i := range d1 {
			assert.InDelta(t, d1[i], d2[i], 0.5, "%v lane %d", bt, i)
		}
	}
}
