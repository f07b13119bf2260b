package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvesely/mbox-absence/config"
	"github.com/pvesely/mbox-absence/llm"
	"github.com/pvesely/mbox-absence/mbox"
	"github.com/pvesely/mbox-absence/output"
	"github.com/pvesely/mbox-absence/progress"
	"github.com/pvesely/mbox-absence/runner"
	"github.com/pvesely/mbox-absence/stats"
	"github.com/pvesely/mbox-absence/textnorm"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Classify extracted EML files with an Azure OpenAI deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFilter(cmd)
		if err != nil {
			return err
		}
		return runFilter(cfg)
	},
}

func init() {
	cobra.CheckErr(config.RegisterFilterFlags(filterCmd))
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cfg config.Filter) error {
	logger := setupLogger(cfg.LogLevel)

	classifier, err := config.LoadClassifier()
	if err != nil {
		return err
	}
	logger.Info("starting filter",
		"input", cfg.InputDir, "output", cfg.OutputDir, "model", classifier.Deployment)

	adj := llm.New(
		llm.NewAzureClient(classifier.Endpoint, classifier.APIKey, classifier.APIVersion),
		classifier.Deployment,
		llm.Pricing{InputPerMillion: classifier.PriceInput, OutputPerMillion: classifier.PriceOutput},
	)
	systemPrompt, err := readPromptFile(cfg.SystemPromptPath)
	if err != nil {
		return err
	}
	userPrompt, err := readPromptFile(cfg.UserPromptPath)
	if err != nil {
		return err
	}
	adj.SetPrompts(systemPrompt, userPrompt)

	source, err := mbox.NewEMLDir(cfg.InputDir, logger)
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

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	log, err := output.NewFilterLog(cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signalContext()
	defer stop()

	tally := stats.NewTally()
	bar := progress.NewBar(total, "Classifying messages", cfg.LogLevel == "info")
	filter := &runner.Filter{
		Cfg:         cfg,
		Source:      source,
		Adjudicator: adj,
		Converter:   textnorm.NewDOMConverter(),
		Log:         log,
		Bar:         bar,
		Tally:       tally,
		Logger:      logger,
	}

	err = filter.Run(ctx)
	bar.Stop()

	snap := tally.Snapshot()
	if errors.Is(err, context.Canceled) {
		progress.Interrupted(snap)
		err = nil
	} else if err != nil {
		return err
	}

	reportPath := filepath.Join(cfg.OutputDir, "filter_report.json")
	if werr := output.WriteReport(reportPath, snap, output.ReportConfig{
		InputDir:     cfg.InputDir,
		SystemPrompt: cfg.SystemPromptPath,
		UserPrompt:   cfg.UserPromptPath,
		OutputDir:    cfg.OutputDir,
		Model:        classifier.Deployment,
		Timestamp:    time.Now().Format(time.RFC3339),
	}); werr != nil {
		logger.Error("report write failed", "path", reportPath, "err", werr)
	}

	progress.FilterSummary(snap, cfg.OutputDir)
	return err
}

func readPromptFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
