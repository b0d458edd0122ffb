package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pickpal",
	Short: "Product recommendation pipeline",
	Long:  "Discovers product candidates across sources, deduplicates and enriches them, scores with review sentiment, and verifies constraints with bounded adaptation.",
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
