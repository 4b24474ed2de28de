package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ggquant/internal/gguf"
)

func newScanCmd() *cobra.Command {
	var (
		modelPath string
		tensor    string
	)
	cmd := &cobra.Command{
		Use:   "scan <tensor>",
		Short: "Report the packed-index distribution of a low-bit tensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tensor = args[0]
			if modelPath == "" {
				return fmt.Errorf("missing required --model")
			}
			info, err := gguf.ReadModelInfo(modelPath)
			if err != nil {
				return fmt.Errorf("read model info: %w", err)
			}
			ti, ok := info.TensorByName(tensor)
			if !ok {
				return fmt.Errorf("tensor not found: %s", tensor)
			}

			switch ti.Type {
			case gguf.GGMLTypeI2_S:
				return scanI2S(modelPath, info, tensor)
			case gguf.GGMLTypeIQ1_BN, gguf.GGMLTypeIQ2_BN, gguf.GGMLTypeIQ4_K, gguf.GGMLTypeIQ2_K:
				return scanViaDequant(modelPath, info, tensor)
			default:
				return fmt.Errorf("tensor %s type=%d not supported by scan", tensor, ti.Type)
			}
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "path to GGUF model")
	return cmd
}

func scanI2S(modelPath string, info gguf.ModelInfo, name string) error {
	packed, _, count, err := gguf.ReadTensorI2SPacked(modelPath, info, name)
	if err != nil {
		return fmt.Errorf("read i2_s tensor: %w", err)
	}
	var counts [4]uint64
	for i := uint64(0); i < count; i++ {
		const block = 128
		const blockBytes = 32
		bi := int(i) / block
		off := int(i) % block
		gp := off % 32
		group := off / 32
		p := bi*blockBytes + gp
		q := (packed[p] >> uint(6-2*group)) & 0x3
		counts[q]++
	}
	fmt.Printf("counts: 0=%d 1=%d 2=%d 3=%d\n", counts[0], counts[1], counts[2], counts[3])
	return nil
}

// scanViaDequant reports a coarse sign/zero histogram over a codec's
// dequantized values, since IQ1_BN/IQ2_BN/IQ4_K/IQ2_K don't expose their raw
// packed indices through a single byte-per-lane layout the way i2_s does.
func scanViaDequant(modelPath string, info gguf.ModelInfo, name string) error {
	data, err := gguf.ReadTensorAsF32(modelPath, info, name)
	if err != nil {
		return fmt.Errorf("read tensor %q: %w", name, err)
	}
	var neg, zero, pos int
	for _, v := range data {
		switch {
		case v < 0:
			neg++
		case v == 0:
			zero++
		default:
			pos++
		}
	}
	fmt.Printf("lanes=%d negative=%d zero=%d positive=%d\n", len(data), neg, zero, pos)
	return nil
}
