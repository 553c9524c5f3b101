package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pulsectl",
	Short: "Offline PPG blood pressure extraction and health scoring",
	Long: `Runs the batch side of the pulse service without the HTTP server.

Configuration comes from defaults, the YAML file named by PULSE_CONFIG and
PULSE_* environment variables, in that order. Flags override all three.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return logger.SetLevelString(cfg.LogLevel)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
