// Package cmd wires the subcommands of the mbox-absence CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "mbox-absence",
	Short:         "Find absence notifications in mail archives",
	Long:          "mbox-absence scans mbox archives for vacation and out-of-office replies, first by a bilingual keyword lexicon, then optionally by an LLM classifier.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(logLevel string) *slog.Logger {
	level := new(slog.LevelVar)
	switch logLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context canceled by Ctrl+C or SIGTERM. The
// in-flight message finishes; the loop stops before the next one.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
