// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"dfttest/internal/rdft"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rdftResult struct {
	Shape []int     `yaml:"shape,flow"`
	Data  []float64 `yaml:"data,flow"` // interleaved (re, im)
}

func newRDFTCommand() *cobra.Command {
	var (
		shape []int
		data  []float64
	)

	rdftCmd := &cobra.Command{
		Use:   "rdft",
		Short: "Print the real-input DFT of an array as interleaved (re, im) pairs",
		Example: `  dfttest rdft --shape 4 --data 1,0,0,0
  dfttest rdft --shape 2,2 --data 1,2,3,4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := rdft.Transform(data, shape)
			if err != nil {
				return err
			}

			out := rdftResult{Shape: halfShape(shape), Data: rdft.Interleave(freq)}
			b, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("rdft: encode result: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	rdftCmd.Flags().IntSliceVar(&shape, "shape", nil, "Array shape, 1 to 3 dimensions")
	rdftCmd.Flags().Float64SliceVar(&data, "data", nil, "Array values in row-major order")
	_ = rdftCmd.MarkFlagRequired("shape")
	_ = rdftCmd.MarkFlagRequired("data")
	return rdftCmd
}

// halfShape returns the output shape: the last axis keeps n/2+1 bins.
func halfShape(shape []int) []int {
	out := append([]int(nil), shape...)
	if n := len(out); n > 0 {
		out[n-1] = out[n-1]/2 + 1
	}
	return out
}
