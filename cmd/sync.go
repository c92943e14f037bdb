package cmd

import (
	"log"

	"catalog-sync/core/config"
	"catalog-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd runs exactly one sync cycle and exits. Useful for cron-style
// deployments and for debugging cycle behavior.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle",
	Long:  `Pulls the catalog, diffs it against the last snapshot, matches due products and commits the result.`,
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

		report, err := eng.orchestrator.RunCycle(cmd.Context())
		if err != nil {
			return err
		}

		logg.Info("Cycle finished",
			zap.String("cycle_id", report.CycleID),
			zap.Bool("partial", report.Partial),
			zap.Int("pulled", report.Pulled),
			zap.Int("events", report.Events),
			zap.Int("matched", report.Matched),
			zap.Int("ambiguous", report.Ambiguous),
			zap.Int("unmatched", report.Unmatched),
			zap.Int("match_errors", report.MatchErrors),
			zap.Int64("deactivated", report.Deactivated),
			zap.Duration("duration", report.Duration),
		)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
}
