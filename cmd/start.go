package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"discovery-sync/core/loader"
	"discovery-sync/core/logger"
	"discovery-sync/core/metrics"
	"discovery-sync/core/middleware/auth"
	"discovery-sync/core/middleware/rayid"

	"discovery-sync/feature/jobs"
	"discovery-sync/feature/orchestrator"
	"discovery-sync/feature/tables"
	"discovery-sync/feature/taxonomy"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "discovery-sync/docs/swagger"
)

// @title Discovery Sync API
// @version 1.0
// @description API for triggering and inspecting discovery inventory sync runs.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync server",
	Long:  `Starts the HTTP server, loads all enabled features and schedules sync runs when an interval is configured.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		env, err := bootstrap(ctx)
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		logg := env.logger
		defer logg.Sync()

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// Sync runs are driven through the jobs feature
		runner := orchestrator.Build(env.cfg, env.db, env.client, env.store, logg)
		var archive jobs.ReportLoader
		if a := runner.Archive(); a != nil {
			archive = a
		}
		jobsFeature := jobs.NewFeature(runner, archive, logg)

		mgr := loader.NewManager()
		mgr.Register(jobsFeature)
		mgr.Register(tables.NewFeature(env.db, env.cfg.Database.Schema, logg))
		mgr.Register(taxonomy.NewFeature(env.client, logg))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Zap + RayID)
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

		// 3. Public endpoints
		app.Get("/swagger/*", swagger.HandlerDefault)
		app.Get("/metrics", metrics.Handler())

		// 4. Auth (Protect API)
		app.Use(auth.New(auth.Config{
			ApiKey: env.cfg.Server.ApiKey,
			Skip:   []string{"/swagger", "/metrics"},
		}))
		if !env.cfg.Server.AuthEnabled() {
			logg.Warn("API key is empty, the API is unauthenticated")
		}

		// 5. Load Features
		if err := loadFeatures(app, mgr, logg); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("address", env.cfg.Server.Address()))
			if err := app.Listen(env.cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		go jobsFeature.Service().Schedule(ctx, env.cfg.Sync.Interval)

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		cancel()
		if err := app.ShutdownWithTimeout(env.cfg.Server.ShutdownTimeout); err != nil {
			logg.Warn("Server shutdown incomplete", zap.Error(err))
		}
		jobsFeature.Service().Close()
	},
}

// loadFeatures mounts every enabled feature on app and logs which ones are served.
func loadFeatures(app fiber.Router, mgr *loader.Manager, logg *zap.Logger) error {
	loaded, err := mgr.LoadAll(app)
	if err != nil {
		return err
	}
	logg.Info("Features loaded", zap.Strings("features", loaded))
	return nil
}

func init() {
	RootCmd.AddCommand(startCmd)
}
