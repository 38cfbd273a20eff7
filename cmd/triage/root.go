package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/servicing-triage/internal/bootstrap"
	"github.com/kirillkom/servicing-triage/internal/config"
	"github.com/kirillkom/servicing-triage/internal/observability/logging"
)

type rootOptions struct {
	inputDir    string
	outputDir   string
	rulesFile   string
	concurrency int
	resetCache  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "triage",
		Short:        "Classify, deduplicate and route loan-servicing correspondence",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.inputDir, "input-dir", "", "directory of .eml/.txt/.docx/.pdf files (overrides INPUT_DIR)")
	flags.StringVar(&opts.outputDir, "output-dir", "", "directory for output records (overrides OUTPUT_DIR)")
	flags.StringVar(&opts.rulesFile, "rules", "", "YAML rule tables (overrides RULES_FILE)")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "documents processed in parallel (overrides BATCH_CONCURRENCY)")
	flags.BoolVar(&opts.resetCache, "reset-cache", false, "clear the duplicate cache before the run (overrides DEDUP_RESET_ON_START)")

	cmd.AddCommand(
		newRunCmd(opts),
		newProcessCmd(opts),
		newCacheCmd(opts),
		newEnqueueCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// loadConfig merges environment configuration with flags that were set.
func (o *rootOptions) loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	flags := cmd.Flags()
	if flags.Changed("input-dir") {
		cfg.InputDir = o.inputDir
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = o.outputDir
	}
	if flags.Changed("rules") {
		cfg.RulesFile = o.rulesFile
	}
	if flags.Changed("concurrency") {
		cfg.BatchConcurrency = o.concurrency
	}
	if flags.Changed("reset-cache") {
		cfg.DedupResetOnStart = o.resetCache
	}
	return cfg
}

// openApp installs the CLI logger on stderr and builds the pipeline.
func (o *rootOptions) openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := o.loadConfig(cmd)
	logging.Install(logging.New(cmd.ErrOrStderr(), "triage", cfg.LogLevel, "text"))

	app, err := bootstrap.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
