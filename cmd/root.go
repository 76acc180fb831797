package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geostat",
	Short: "Spatial data science pipeline for elevation surfaces",
	Long:  "Fetches administrative boundaries and elevation tiles, samples and interpolates the surface, tessellates the study area and tests it for spatial autocorrelation.",
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
