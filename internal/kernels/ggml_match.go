package kernels

import "os"

var iqkParityStrictFlag = os.Getenv("BITNET_IQK_PARITY_STRICT") == "1"

// iqkParityStrict forces every fused dot product down its scalar fallback,
// even when a fast-path collaborator is registered via iqkMulMat. Useful for
// bisecting a fast-path/scalar mismatch bit-for-bit.
func iqkParityStrict() bool {
	return iqkParityStrictFlag
}
