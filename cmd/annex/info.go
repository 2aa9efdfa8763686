package main

import (
	"github.com/spf13/cobra"
)

type idLookup struct {
	ID      int64 `json:"id"`
	Present bool  `json:"present"`
}

func newInfoCmd(a *app) *cobra.Command {
	var ids []int64

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the family, shape and contents of an index",
		Long: `Info prints the index statistics. With --id it prints one line per
id instead, saying whether the id was ever added.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer ix.Close()

			if len(ids) == 0 {
				return a.encodeStats(cmd, ix)
			}
			for _, id := range ids {
				if err := a.encode(cmd, idLookup{ID: id, Present: ix.Contains(id)}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "id", nil, "Report whether these ids are present")
	return cmd
}
