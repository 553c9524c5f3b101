package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	app "github.com/okian/pulse/internal/app"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every roster subject and rank by readiness",
	Long: `Resolves each subject's blood pressure from the latest extraction (120/80
when none is usable), fetches vitals for the configured window, computes the
Readiness, Performance and Success scores and writes health_scores.csv and
.json to the data directory.

Run extract first in the same process or against the same --db, otherwise
every subject scores with the default blood pressure.

Examples:
  pulsectl score --extract
  pulsectl score --db pulse.db --top 10`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("roster", "", "roster CSV path (overrides config)")
	f.String("waveforms", "", "waveform directory (overrides config)")
	f.String("data", "", "output directory (overrides config)")
	f.String("db", "", "SQLite record store path (overrides config)")
	f.Bool("extract", false, "run extraction before scoring")
	f.Int("top", 0, "print the top N results as a table (0 prints the summary as JSON)")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	overrideString(cmd, "roster", &cfg.RosterPath)
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

	if extract, _ := cmd.Flags().GetBool("extract"); extract {
		if _, err := svc.RunExtraction(ctx); err != nil {
			return err
		}
	}
	sum, err := svc.RunScoring(ctx)
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	if top <= 0 {
		return printJSON(cmd.OutOrStdout(), sum)
	}

	results, err := svc.Results(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tREADINESS\tPERFORMANCE\tSUCCESS\tBP\tBP SOURCE")
	for i, r := range results[:min(top, len(results))] {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.1f/%.1f\t%s\n",
			i+1, r.SubjectID, r.ReadinessScore, r.PerformanceScore, r.SuccessScore, r.SBP, r.DBP, r.BPSource)
	}
	fmt.Fprintf(tw, "\n%d scored, %d failed\n", sum.Scored, sum.Failed)
	return tw.Flush()
}
