package main

import (
	"github.com/spf13/cobra"
)

func newEnqueueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue",
		Short: "Parse the input directory and publish each document to the worker queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ingestUC, err := app.IngestUC()
			if err != nil {
				return err
			}
			report, err := ingestUC.EnqueueAll(cmd.Context(), app.Source)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}
