package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the IMAP mailbox and process unseen messages as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			watch, err := app.WatchUC()
			if err != nil {
				return err
			}
			if once {
				report, err := watch.Poll(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			}

			if !cmd.Flags().Changed("interval") {
				interval = time.Duration(app.Config.WatchIntervalSeconds) * time.Second
			}
			out := cmd.OutOrStdout()
			return watch.Run(cmd.Context(), interval, func(report domain.BatchReport) {
				_ = writeJSON(out, report)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "time between mailbox polls (overrides WATCH_INTERVAL_SECONDS)")
	cmd.Flags().BoolVar(&once, "once", false, "poll once, print the report and exit")
	return cmd
}
