package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"ggquant/pkg/quant"
)

func newQuantizeCmd() *cobra.Command {
	var (
		codec      string
		inPath     string
		outPath    string
		nPerRow    int
		importPath string
	)
	cmd := &cobra.Command{
		Use:   "quantize",
		Short: "Quantize a raw little-endian float32 file into a packed codec",
		RunE: func(cmd *cobra.Command, args []string) error {
			bt, ok := codecByName[codec]
			if !ok {
				return fmt.Errorf("unknown --codec %q (want one of iq1_bn, iq2_bn, iq4_k, iq2_k)", codec)
			}
			if inPath == "" || outPath == "" {
				return fmt.Errorf("missing required --in/--out")
			}
			lanes := quant.SuperBlockLanes(bt)
			if nPerRow <= 0 {
				nPerRow = lanes
			}
			if nPerRow%lanes != 0 {
				return fmt.Errorf("--n-per-row=%d must be a multiple of %d for %s", nPerRow, lanes, codec)
			}

			src, err := readFloat32File(inPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", inPath, err)
			}
			if len(src)%nPerRow != 0 {
				return fmt.Errorf("input has %d floats, not a multiple of n-per-row=%d", len(src), nPerRow)
			}
			nrows := len(src) / nPerRow

			var qw []float32
			if importPath != "" {
				qw, err = readFloat32File(importPath)
				if err != nil {
					return fmt.Errorf("read importance vector %s: %w", importPath, err)
				}
				if len(qw) != nPerRow {
					return fmt.Errorf("importance vector has %d floats, want %d (n-per-row)", len(qw), nPerRow)
				}
			}

			rowBytes, err := quant.RowSize(bt, nPerRow)
			if err != nil {
				return err
			}
			dst := make([]byte, nrows*rowBytes)
			written, err := quant.QuantizeRows(bt, dst, src, nrows, nPerRow, qw)
			if err != nil {
				return fmt.Errorf("quantize: %w", err)
			}

			if err := os.WriteFile(outPath, dst, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Printf("codec=%s rows=%d n_per_row=%d bytes_written=%d\n", codec, nrows, nPerRow, written)
			return nil
		},
	}
	cmd.Flags().StringVar(&codec, "codec", "iq4_k", "target codec: iq1_bn, iq2_bn, iq4_k, iq2_k")
	cmd.Flags().StringVar(&inPath, "in", "", "input file: raw little-endian float32 values")
	cmd.Flags().StringVar(&outPath, "out", "", "output file for packed blocks")
	cmd.Flags().IntVar(&nPerRow, "n-per-row", 0, "floats per row (defaults to one super-block)")
	cmd.Flags().StringVar(&importPath, "importance", "", "optional importance vector file (float32, length n-per-row)")
	return cmd
}

func readFloat32File(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size()%4 != 0 {
		return nil, fmt.Errorf("file size %d is not a multiple of 4 bytes", info.Size())
	}
	n := info.Size() / 4
	out := make([]float32, n)
	buf := make([]byte, info.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}
