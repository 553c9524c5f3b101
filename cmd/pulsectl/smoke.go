package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/pulse/internal/smoke"
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Exercise a running server end to end and verify its responses",
	Long: `Checks /healthz, optionally triggers extraction and scoring, then verifies
the served ranking (order, score bounds, crisis override, default BP) against
the served estimates and replays heart-rate streams past their end.

Examples:
  pulsectl smoke --url http://localhost:9080
  pulsectl smoke --no-runs --streams 10`,
	RunE: runSmoke,
}

func init() {
	def := smoke.DefaultConfig()
	f := smokeCmd.Flags()
	f.String("url", def.BaseURL, "server base URL")
	f.Duration("timeout", def.Timeout, "per-request timeout")
	f.Bool("no-runs", false, "read existing results without triggering batches")
	f.Int("streams", def.Streams, "subjects whose heart-rate stream is replayed")
	f.Int("workers", def.Workers, "concurrent stream replays")

	rootCmd.AddCommand(smokeCmd)
}

func runSmoke(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	sc := smoke.DefaultConfig()
	sc.BaseURL, _ = f.GetString("url")
	sc.Timeout, _ = f.GetDuration("timeout")
	noRuns, _ := f.GetBool("no-runs")
	sc.TriggerRuns = !noRuns
	sc.Streams, _ = f.GetInt("streams")
	sc.Workers, _ = f.GetInt("workers")

	stats, err := smoke.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stats)
}
