package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annex"
	"github.com/hupe1980/annex/blobstore"
)

func newCreateCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty index file",
		Long: `Create builds an empty index from --dim, --desc and --metric (or --config)
and writes it to --path. Flat and HNSW indexes are ready for add; the other
families need train first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd)
			if err != nil {
				return err
			}

			if !force {
				_, err := a.store.Stat(cmd.Context(), cfg.Path)
				switch {
				case err == nil:
					return fmt.Errorf("%s already exists (use --force to replace it)", cfg.Path)
				case !errors.Is(err, blobstore.ErrNotFound):
					return err
				}
			}

			ix, err := annex.New(cfg, opts...)
			if err != nil {
				return err
			}
			defer ix.Close()

			if err := ix.Write(cmd.Context()); err != nil {
				return err
			}
			return a.encodeStats(cmd, ix)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing index")
	return cmd
}

func (a *app) encodeStats(cmd *cobra.Command, ix *annex.Index) error {
	s, err := ix.Stats()
	if err != nil {
		return err
	}
	return a.encode(cmd, s)
}
