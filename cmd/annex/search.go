package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/annex"
)

type queryResult struct {
	Query     int              `json:"query"`
	Neighbors []annex.Neighbor `json:"neighbors"`
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		query string
		k     int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the index with query vectors from an .fvecs file",
		Long: `Search prints one line per query with its neighbors, closest first.
Queries with fewer than k matches return a shorter list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer ix.Close()

			queries, _, err := readVectors(ix, query, limit)
			if err != nil {
				return err
			}

			rows, err := ix.SearchBatch(k, queries)
			if err != nil {
				return err
			}

			for q, row := range rows {
				if err := a.encode(cmd, queryResult{Query: q, Neighbors: row}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Query vectors (.fvecs)")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "Neighbors per query")
	cmd.Flags().IntVar(&limit, "limit", 0, "Run at most this many queries (0 = all)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
