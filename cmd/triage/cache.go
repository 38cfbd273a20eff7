package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the duplicate cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every remembered document from the duplicate cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Dedup.ResetCache(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "duplicate cache cleared (%s)\n", app.Config.DedupBackend)
			return err
		},
	})
	return cmd
}
