package cmd

import (
	"errors"
	"log"
	"time"

	"catalog-sync/core/config"
	"catalog-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pruneDays int

// pruneCmd deletes archived raw pulls past the retention window.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune archived raw pulls older than N days",
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
		if eng.archiver == nil {
			return errors.New("object storage is not configured")
		}

		deleted, err := eng.archiver.Prune(cmd.Context(), time.Duration(pruneDays)*24*time.Hour)
		if err != nil {
			return err
		}

		logg.Info("Prune finished", zap.Int("deleted", deleted))
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 30, "delete archived pulls older than this many days")
	RootCmd.AddCommand(pruneCmd)
}
