package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"ggquant/internal/kernels"
	"ggquant/pkg/quant"
)

var codecByName = map[string]quant.BlockType{
	"iq1_bn": quant.BlockIQ1BN,
	"iq2_bn": quant.BlockIQ2BN,
	"iq4_k":  quant.BlockIQ4K,
	"iq2_k":  quant.BlockIQ2K,
}

func newCheckCmd() *cobra.Command {
	var (
		codec string
		n     int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify a codec's fused dot product against the naive dequantize-then-dot reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			bt, ok := codecByName[codec]
			if !ok {
				return fmt.Errorf("unknown --codec %q (want one of iq1_bn, iq2_bn, iq4_k, iq2_k)", codec)
			}

			lanes := quant.SuperBlockLanes(bt)
			if n <= 0 {
				n = lanes
			}
			if n%lanes != 0 {
				return fmt.Errorf("--n=%d must be a multiple of %d for %s", n, lanes, codec)
			}

			rng := rand.New(rand.NewSource(seed))
			weights := make([]float32, n)
			acts := make([]float32, n)
			for i := range weights {
				weights[i] = float32(rng.NormFloat64())
				acts[i] = float32(rng.NormFloat64())
			}

			actType, err := quant.ActivationFor(bt)
			if err != nil {
				return err
			}

			wSize, err := quant.RowSize(bt, n)
			if err != nil {
				return err
			}
			wPacked := make([]byte, wSize)
			if _, err := quant.QuantizeRow(bt, wPacked, weights, nil); err != nil {
				return err
			}

			var aSize int
			if actType == quant.BlockQ8K64 {
				aSize = quant.Q8K64RowSize(n)
			} else if aSize, err = quant.RowSize(actType, n); err != nil {
				return err
			}
			aPacked := make([]byte, aSize)
			if _, err := quant.QuantizeRow(actType, aPacked, acts, nil); err != nil {
				return err
			}

			fused, err := quant.Dot(bt, n, wPacked, aPacked)
			if err != nil {
				return err
			}

			wDeq := make([]float32, n)
			quant.Dequantize(bt, wDeq, wPacked)
			aDeq := make([]float32, n)
			quant.Dequantize(actType, aDeq, aPacked)
			reference := kernels.Dot(wDeq, aDeq)

			var rel float64
			if reference != 0 {
				rel = float64((fused - reference) / reference)
				if rel < 0 {
					rel = -rel
				}
			}
			fmt.Printf("codec=%s n=%d seed=%d fused=%g reference=%g rel_err=%g\n", codec, n, seed, fused, reference, rel)
			return nil
		},
	}
	cmd.Flags().StringVar(&codec, "codec", "iq4_k", "codec to check: iq1_bn, iq2_bn, iq4_k, iq2_k")
	cmd.Flags().IntVar(&n, "n", 0, "row length in lanes (defaults to one super-block)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for weight/activation vectors")
	return cmd
}
