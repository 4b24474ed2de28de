package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"ggquant/internal/gguf"
)

func newDumpCmd() *cobra.Command {
	var (
		modelPath string
		showKV    bool
		kvPrefix  string
		showTens  bool
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a GGUF file's key-value metadata and tensor directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				return fmt.Errorf("missing required --model")
			}
			info, err := gguf.ReadModelInfo(modelPath)
			if err != nil {
				return fmt.Errorf("read gguf model info: %w", err)
			}

			fmt.Printf("model=%s version=%d tensors=%d kv=%d\n", modelPath, info.Version, info.TensorCount, info.KVCount)

			if showKV {
				fmt.Println("kv:")
				keys := lo.Keys(info.KeyValues)
				sort.Strings(keys)
				for _, k := range keys {
					if kvPrefix != "" && !strings.HasPrefix(k, kvPrefix) {
						continue
					}
					fmt.Printf("  %s = %v\n", k, info.KeyValues[k])
				}
			}

			if showTens {
				fmt.Println("tensors:")
				tensors := append([]gguf.TensorInfo(nil), info.Tensors...)
				sort.Slice(tensors, func(i, j int) bool { return tensors[i].Name < tensors[j].Name })
				for _, t := range tensors {
					fmt.Printf("  %s dims=%v type=%d offset=%d\n", t.Name, t.Dimensions, t.Type, t.Offset)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "path to GGUF model")
	cmd.Flags().BoolVar(&showKV, "kv", true, "print GGUF key-values")
	cmd.Flags().StringVar(&kvPrefix, "kv-prefix", "", "only print KV keys with this prefix")
	cmd.Flags().BoolVar(&showTens, "tensors", true, "print tensor directory")
	return cmd
}
