package main

import (
	"github.com/spf13/cobra"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		input string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an index on vectors from an .fvecs file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer ix.Close()

			vectors, _, err := readVectors(ix, input, limit)
			if err != nil {
				return err
			}

			if err := ix.Train(vectors); err != nil {
				return err
			}
			if err := ix.Write(cmd.Context()); err != nil {
				return err
			}
			return a.encodeStats(cmd, ix)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Training vectors (.fvecs)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Use at most this many vectors (0 = all)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
