package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"condo_collections/internal/infra/config"
	"condo_collections/internal/infra/logger"
)

var cfg *config.AppConfig

var rootCmd = &cobra.Command{
	Use:          "collections",
	Short:        "Condominium delinquency lifecycle and collections engine",
	Long:         "Classifies every unit's arrears, escalates it through the collections ladder, sends owner notices, board alerts and attorney referrals.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger.Init(cfg)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
