package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process FILE...",
		Short: "Process individual files and print their records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			records := make([]domain.OutputRecord, 0, len(args))
			for _, path := range args {
				record, err := processFile(cmd.Context(), app.Parser, app.ProcessUC, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				records = append(records, record)
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
}

func processFile(ctx context.Context, parser ports.DocumentParser, processor ports.DocumentProcessor, path string) (domain.OutputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.OutputRecord{}, err
	}
	defer f.Close()

	doc, err := parser.Parse(ctx, path, f)
	if err != nil {
		return domain.OutputRecord{}, err
	}
	return processor.Process(ctx, doc)
}
