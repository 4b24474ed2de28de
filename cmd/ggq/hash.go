package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"ggquant/internal/gguf"
)

type hashSpec struct {
	Tensor string `json:"tensor"`
	Count  int    `json:"count"`
	SHA256 string `json:"sha256"`
}

func newHashCmd() *cobra.Command {
	var (
		modelPath  string
		tensorName string
		count      int
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a dequantized tensor's leading elements for regression pinning",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				return fmt.Errorf("missing required --model")
			}
			info, err := gguf.ReadModelInfo(modelPath)
			if err != nil {
				return fmt.Errorf("read gguf model info: %w", err)
			}

			name := tensorName
			if name == "" {
				for i := range info.Tensors {
					if isLowBitType(info.Tensors[i].Type) {
						name = info.Tensors[i].Name
						break
					}
				}
				if name == "" {
					return fmt.Errorf("no low-bit tensor found; use --tensor to specify")
				}
			}

			data, err := gguf.ReadTensorAsF32(modelPath, info, name)
			if err != nil {
				return fmt.Errorf("read tensor %q: %w", name, err)
			}
			n := count
			if n <= 0 || n > len(data) {
				n = len(data)
			}

			h := sha256.New()
			var buf [4]byte
			for i := 0; i < n; i++ {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(data[i]))
				_, _ = h.Write(buf[:])
			}

			spec := hashSpec{Tensor: name, Count: n, SHA256: fmt.Sprintf("%x", h.Sum(nil))}
			out, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal hash spec: %w", err)
			}
			out = append(out, '\n')

			if outPath == "" {
				_, err = os.Stdout.Write(out)
				return err
			}
			return os.WriteFile(outPath, out, 0o644)
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "path to GGUF model")
	cmd.Flags().StringVar(&tensorName, "tensor", "", "tensor name (optional)")
	cmd.Flags().IntVar(&count, "count", 4096, "number of elements to hash")
	cmd.Flags().StringVar(&outPath, "out", "", "output JSON path (optional)")
	return cmd
}

func isLowBitType(t uint32) bool {
	switch t {
	case gguf.GGMLTypeIQ2_XXS,
		gguf.GGMLTypeIQ2_XS,
		gguf.GGMLTypeIQ3_XXS,
		gguf.GGMLTypeIQ1_S,
		gguf.GGMLTypeIQ4_NL,
		gguf.GGMLTypeIQ3_S,
		gguf.GGMLTypeIQ2_S,
		gguf.GGMLTypeIQ4_XS,
		gguf.GGMLTypeIQ1_M,
		gguf.GGMLTypeIQ1_BN,
		gguf.GGMLTypeIQ2_BN,
		gguf.GGMLTypeIQ4_K,
		gguf.GGMLTypeIQ2_K:
		return true
	default:
		return false
	}
}
