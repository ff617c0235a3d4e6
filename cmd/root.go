package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fraudleak/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fraudleak",
	Short: "Rule-based fraud and revenue-leakage risk scoring",
	Long: "Scores financial transactions from a spreadsheet with weighted audit rules and optional " +
		"amount outlier detection, flags risky records and writes an audit report.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
