package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annex/internal/fvecs"
)

type addResult struct {
	Added int   `json:"added"`
	Count int64 `json:"count"`
	MaxID int64 `json:"max_id"`
}

func newAddCmd(a *app) *cobra.Command {
	var (
		input   string
		idsFile string
		startID int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add vectors from an .fvecs file",
		Long: `Add appends vectors to the index. Ids come from --ids (an .ivecs file with
one id per record) or count up from --start-id. Without either, ids continue
after the last added id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer ix.Close()

			vectors, n, err := readVectors(ix, input, limit)
			if err != nil {
				return err
			}

			var ids []int64
			if idsFile != "" {
				var idDim int
				ids, idDim, err = fvecs.ReadIntsFile(idsFile, n)
				if err != nil {
					return err
				}
				if idDim != 1 || len(ids) != n {
					return fmt.Errorf("%s: want %d records of one id, got dimension %d and %d ids", idsFile, n, idDim, len(ids))
				}
			} else {
				next := startID
				if !cmd.Flags().Changed("start-id") && ix.Count() > 0 {
					next = ix.MaxID() + 1
				}
				ids = make([]int64, n)
				for i := range ids {
					ids[i] = next + int64(i)
				}
			}

			if err := ix.AddWithIDs(ids, vectors); err != nil {
				return err
			}
			if err := ix.Write(cmd.Context()); err != nil {
				return err
			}

			return a.encode(cmd, addResult{Added: n, Count: ix.Count(), MaxID: ix.MaxID()})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Vectors to add (.fvecs)")
	cmd.Flags().StringVar(&idsFile, "ids", "", "Ids for the vectors (.ivecs)")
	cmd.Flags().Int64Var(&startID, "start-id", 0, "First id when --ids is not given")
	cmd.Flags().IntVar(&limit, "limit", 0, "Add at most this many vectors (0 = all)")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("ids", "start-id")
	return cmd
}
