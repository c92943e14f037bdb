package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"catalog-sync/core/config"
	"catalog-sync/core/loader"
	"catalog-sync/core/logger"
	"catalog-sync/core/middleware"
	"catalog-sync/core/syncer"
	"catalog-sync/feature/enrich"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the catalog sync service",
	Long:  `Starts the scheduled sync cycles and the HTTP read API.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Wire the sync engine. The database is not optional here; the
		// whole engine is stateful.
		eng, err := buildEngine(cfg, logg)
		if err != nil {
			logg.Fatal("Failed to build sync engine", zap.Error(err))
		}

		// 4. Start the cycle scheduler. The first cycle runs immediately.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		scheduler := syncer.NewScheduler(eng.orchestrator, cfg.Sync, logg)
		scheduler.Start(ctx)

		// 5. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(middleware.RayID())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		app.Use(middleware.Auth(cfg.Server.ApiKey))

		// 6. Load Features
		mgr := loader.NewManager(logg)
		mgr.Register(enrich.NewFeature(eng.db, eng.links, logg))
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 7. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 8. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down...")
		cancel()
		scheduler.Stop()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
