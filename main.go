// Command gifcompress runs the GIF/WebP compression batch service: an
// HTTP/WS API in front of a persistent job queue, a bounded worker pool
// that drives an external compression tool, and a background reaper that
// expires old artifacts and fails jobs stuck in uploading or queued.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/joho/godotenv"

	"gifcompress/artifacts"
	"gifcompress/config"
	"gifcompress/eventbus"
	"gifcompress/executor"
	"gifcompress/handlers"
	"gifcompress/logging"
	"gifcompress/monitoring"
	"gifcompress/optimization"
	"gifcompress/predictor"
	"gifcompress/reaper"
	"gifcompress/store"
	"gifcompress/workerpool"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.New()

	appLogger, err := logging.New("gifcompress", logging.ConfigForEnvironment(cfg.Environment))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	slogger := appLogger.Logger

	// Warm the shared buffer pools before any request can reach them.
	optimization.GetGlobalPools()

	monitoring.InitGlobalMonitoring()
	metricsCollector := monitoring.GetMetricsCollector()
	healthChecker := monitoring.GetHealthChecker()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slogger.Error("failed to open job repository", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	artifactStore, err := artifacts.New(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		slogger.Error("failed to initialize artifact store", slog.Any("error", err))
		os.Exit(1)
	}

	tool := executor.NewBinaryTool(cfg.GifsiclePath)
	exec_ := executor.New(tool)

	baseline, err := predictor.LoadBaseline(cfg.BaselineModelPath)
	if err != nil {
		slogger.Warn("no baseline predictor model found, falling back to residual-only estimates",
			slog.String("path", cfg.BaselineModelPath), slog.Any("error", err))
		baseline = nil
	}
	predictorSvc := predictor.New(baseline, db)
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 10*time.Second)
	if err := predictorSvc.Warm(warmCtx); err != nil {
		slogger.Warn("failed to warm predictor residuals", slog.Any("error", err))
	}
	cancelWarm()

	bus := eventbus.New()

	pool := workerpool.New(workerpool.Deps{
		Store:     db,
		Artifacts: artifactStore,
		Executor:  exec_,
		Predictor: predictorSvc,
		Bus:       bus,
		Metrics:   metricsCollector,
		Logger:    slogger,
	}, cfg.DefaultConcurrency, cfg.MaxConcurrency, cfg.RetentionTTL)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if err := pool.Start(startCtx); err != nil {
		cancelStart()
		slogger.Error("failed to start worker pool", slog.Any("error", err))
		os.Exit(1)
	}
	cancelStart()

	reaperInterval := cfg.ReaperInterval
	if reaperInterval <= 0 {
		reaperInterval = time.Minute
	}
	staleAfter := cfg.StaleJobAge
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	jobReaper := reaper.New(db, artifactStore, slogger, reaperInterval, staleAfter)
	reaperCtx, cancelReaper := context.WithCancel(context.Background())
	go jobReaper.Run(reaperCtx)

	healthChecker.RegisterCheck("repository", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Ping(ctx)
	})
	healthChecker.RegisterCheck("gifsicle_binary", func() error {
		_, err := exec.LookPath(cfg.GifsiclePath)
		return err
	})

	h := handlers.New(handlers.Deps{
		Store:     db,
		Artifacts: artifactStore,
		Pool:      pool,
		Bus:       bus,
		Tool:      tool,
		Config:    cfg,
		Metrics:   metricsCollector,
		Health:    healthChecker,
		Logger:    slogger,
	})

	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.MaxUploadBytes) + 1024*1024,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: logging.ErrorHandler(appLogger),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logging.RecoveryMiddleware(appLogger))
	app.Use(logging.FiberMiddleware(appLogger))
	app.Use(func(c *fiber.Ctx) error {
		metricsCollector.RecordRequest()
		err := c.Next()
		if err != nil {
			metricsCollector.RecordError()
		}
		return err
	})

	if cfg.Environment == "development" {
		app.Use(pprof.New())
	}

	h.Register(app)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		slogger.Info("shutdown signal received, draining connections")
		cancelReaper()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slogger.Error("error shutting down http server", slog.Any("error", err))
		}

		// In-flight jobs are never cancelled: wait for the pool to drain
		// before the process exits.
		pool.Wait()
		slogger.Info("graceful shutdown complete")
		os.Exit(0)
	}()

	slogger.Info("gifcompress server starting", slog.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		slogger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
