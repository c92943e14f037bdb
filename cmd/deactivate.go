package cmd

import (
	"log"
	"time"

	"catalog-sync/core/config"
	"catalog-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deactivateDays int

// deactivateCmd retires products no pull has seen recently, without
// waiting for the next complete cycle.
var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate products unseen for N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()

		eng, err := buildEngine(cfg, logg)
		if err != nil {
			return err
		}

		cutoff := time.Now().AddDate(0, 0, -deactivateDays)
		n, err := eng.store.DeactivateUnseen(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		logg.Info("Deactivation finished",
			zap.Int64("deactivated", n),
			zap.Time("cutoff", cutoff),
		)
		return nil
	},
}

func init() {
	deactivateCmd.Flags().IntVar(&deactivateDays, "days", 14, "deactivate products unseen for this many days")
	RootCmd.AddCommand(deactivateCmd)
}
