package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pvesely/mbox-absence/config"
	"github.com/pvesely/mbox-absence/runner"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Pack a directory of EML files into one mbox archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConvert(cmd)
		if err != nil {
			return err
		}

		logger := setupLogger(cfg.LogLevel)
		logger.Info("starting conversion", "emlDir", cfg.EMLDir, "mbox", cfg.MboxPath)

		ctx, stop := signalContext()
		defer stop()

		written, err := runner.Convert(ctx, cfg, logger)
		if err != nil {
			return err
		}

		pterm.Success.Printf("Wrote %d messages to %s\n", written, cfg.MboxPath)
		return nil
	},
}

func init() {
	cobra.CheckErr(config.RegisterConvertFlags(convertCmd))
	rootCmd.AddCommand(convertCmd)
}
