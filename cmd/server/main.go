package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/app"
	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/cleanup"
	"github.com/codebuildervaibhav/hillmyna/internal/config"
	"github.com/codebuildervaibhav/hillmyna/internal/handlers"
	"github.com/codebuildervaibhav/hillmyna/internal/logging"
	"github.com/codebuildervaibhav/hillmyna/internal/queue"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logBuffer := logging.NewBuffer(0)
	baseLogger, err := logging.NewLogger(cfg.Logging, logBuffer)
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	log := logrus.NewEntry(baseLogger)

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}

	log.Info("Initializing components...")

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
	}

	ctx := context.Background()
	wire, err := app.NewWire(ctx, cfg, log, registerer(registry))
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer wire.Close()

	// Worker pool
	workerPool := queue.NewWorkerPool(
		cfg.Workers.Count,
		wire.Service,
		audio.Normalize,
		cfg.Storage.TempDir,
		wire.Metrics,
		log.WithField("component", "queue"),
	)
	workerPool.Start()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		log.WithField("component", "cleanup"),
		cleanup.Task{Name: "expired challenges", Run: wire.SweepChallenges},
		cleanup.Task{Name: "finished enrollment jobs", Run: workerPool.Prune},
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	fiberApp := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})

	// Middleware
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New(logger.Config{Output: log.WriterLevel(logrus.DebugLevel)}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	if registry != nil {
		prom := fiberprometheus.NewWithRegistry(registry, "hillmyna", "http", "", nil)
		prom.RegisterAt(fiberApp, cfg.Metrics.Path)
		fiberApp.Use(prom.Middleware)
	}

	checks := map[string]handlers.ReadyCheck{}
	for name, check := range wire.ReadyChecks() {
		checks[name] = check
	}

	// Routes
	handlers.Register(fiberApp,
		handlers.NewInfoHandler(
			wire.Words,
			cfg.Challenge.Words,
			wire.EnrollmentText,
			wire.DB,
			wire.Archive,
			logBuffer,
			checks,
		),
		handlers.NewLoginHandler(wire.Service, audio.Normalize, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB, log.WithField("component", "login")),
		handlers.NewUserHandler(wire.Service, workerPool, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB, log.WithField("component", "users")),
		handlers.NewStreamHandler(wire.Service, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB, cfg.MaxDuration(), cfg.Azure.OperationTimeout, log.WithField("component", "stream")),
	)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Infof("Server starting on %s", addr)
	log.Info("Endpoints:")
	log.Info("   POST /challenges              - Issue login words")
	log.Info("   POST /login                   - Log in with a recording")
	log.Info("   GET  /ws/login                - Log in with a streamed recording")
	log.Info("   POST /users                   - Create a user")
	log.Info("   POST /users/:username/enroll  - Queue an enrollment sample")
	log.Info("   GET  /jobs/:id                - Enrollment job status")
	log.Info("   GET  /attempts                - Recent logins")
	log.Info("   GET  /health, /ready          - Health checks")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down gracefully...")
		if err := fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Errorf("HTTP shutdown: %v", err)
		}
	}()

	if err := fiberApp.Listen(addr); err != nil {
		log.Errorf("Server failed: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := workerPool.Stop(stopCtx); err != nil {
		log.Warnf("Enrollment jobs abandoned: %v", err)
	}
}

// registerer avoids handing a typed nil registry to metrics.New.
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}
