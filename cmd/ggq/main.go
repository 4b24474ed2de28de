// Command ggq inspects GGUF models and exercises the ultra-low-bit weight
// codecs in internal/kernels and pkg/quant.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ggq",
		Short: "Inspect GGUF models and exercise ultra-low-bit quantization codecs",
	}
	root.AddCommand(newDumpCmd())
	root.AddCommand(newHashCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newQuantizeCmd())
	return root
}
