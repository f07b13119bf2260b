package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/pvesely/mbox-absence/config"
	"github.com/pvesely/mbox-absence/evidence"
	"github.com/pvesely/mbox-absence/mbox"
	"github.com/pvesely/mbox-absence/output"
	"github.com/pvesely/mbox-absence/progress"
	"github.com/pvesely/mbox-absence/runner"
	"github.com/pvesely/mbox-absence/state"
	"github.com/pvesely/mbox-absence/stats"
	"github.com/pvesely/mbox-absence/textnorm"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Scan an mbox archive and save keyword-matched messages as EML files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadExtract(cmd)
		if err != nil {
			return err
		}
		return runExtract(cfg)
	},
}

func init() {
	cobra.CheckErr(config.RegisterExtractFlags(extractCmd))
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cfg config.Extract) error {
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting extraction",
		"mbox", cfg.MboxPath, "target", cfg.TargetEmail,
		"fromOnly", cfg.FromOnly, "replyOnly", cfg.ReplyOnly, "dryRun", cfg.DryRun)

	patterns := evidence.Default()
	if cfg.PatternFile != "" {
		lines, err := evidence.LoadFile(cfg.PatternFile)
		if err != nil {
			return err
		}
		patterns, err = evidence.Compile(lines)
		if err != nil {
			return err
		}
		logger.Info("loaded pattern file", "path", cfg.PatternFile, "patterns", patterns.Len())
	}

	source, err := mbox.NewScanner(cfg.MboxPath, logger)
	if err != nil {
		return err
	}
	total, err := source.Count()
	if err != nil {
		return err
	}
	if cfg.Limit > 0 && cfg.Limit < total {
		total = cfg.Limit
	}

	var tracker state.Tracker = state.NewMemoryTracker()
	if !cfg.DryRun {
		fileTracker, err := state.NewFileTracker(cfg.StateDir)
		if err != nil {
			return err
		}
		defer fileTracker.Close()
		tracker = fileTracker
	}

	var log *output.ExtractLog
	if !cfg.DryRun {
		log, err = output.NewExtractLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer log.Close()
	}

	ctx, stop := signalContext()
	defer stop()

	tally := stats.NewTally()
	bar := progress.NewBar(total, "Scanning messages", cfg.LogLevel == "info")
	ext := &runner.Extractor{
		Cfg:       cfg,
		Source:    source,
		Patterns:  patterns,
		Converter: textnorm.NewDOMConverter(),
		Tracker:   tracker,
		Log:       log,
		Bar:       bar,
		Tally:     tally,
		Logger:    logger,
	}

	err = ext.Run(ctx)
	bar.Stop()

	if errors.Is(err, context.Canceled) {
		progress.Interrupted(tally.Snapshot())
		return nil
	}
	if err != nil {
		return err
	}

	progress.ExtractSummary(tally.Snapshot(), cfg.OutputDir, cfg.DryRun)
	return nil
}
