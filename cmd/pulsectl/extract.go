package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	app "github.com/okian/pulse/internal/app"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Estimate blood pressure from every waveform file",
	Long: `Reads every *.csv waveform in the waveform directory, detects heartbeats,
estimates SBP/DBP from the mean heart rate and writes
estimated_blood_pressure.csv and .json to the data directory.

Examples:
  pulsectl extract
  pulsectl extract --waveforms ./regular --data ./out`,
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.String("waveforms", "", "waveform directory (overrides config)")
	f.String("data", "", "output directory (overrides config)")
	f.String("db", "", "SQLite record store path (overrides config)")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	overrideString(cmd, "waveforms", &cfg.WaveformDir)
	overrideString(cmd, "data", &cfg.DataDir)
	overrideString(cmd, "db", &cfg.DBPath)

	svc, err := app.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	sum, err := svc.RunExtraction(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), sum)
}

func overrideString(cmd *cobra.Command, flag string, dst *string) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		*dst = v
	}
}
