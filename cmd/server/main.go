package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"signagehub/internal/cache"
	"signagehub/internal/clock"
	"signagehub/internal/config"
	"signagehub/internal/database"
	"signagehub/internal/handler"
	"signagehub/internal/logging"
	"signagehub/internal/metrics"
	"signagehub/internal/queue"
	"signagehub/internal/realtime"
	"signagehub/internal/redis"
	"signagehub/internal/repository"
	"signagehub/internal/service"
	transport "signagehub/internal/transport/http"
	signmw "signagehub/internal/transport/http/middleware"
	"signagehub/internal/worker"
)

const workerBackoff = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLoggerWithService("signagehub", cfg.LogLevel)

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	clk := clock.System()
	collector := metrics.NewCollector()
	health := metrics.NewHealthChecker("signagehub")
	health.AddCheck("postgres", db)

	hub := realtime.NewHub(cfg.StreamHeartbeat, logger, realtime.WithObserver(collector))

	// 3. Repositories
	credentials := repository.NewCredentialStore(db)
	displays := repository.NewDisplayRepository(db)
	keys := repository.NewDisplayKeyRepository(db)
	schedules := repository.NewScheduleRepository(db)
	playlists := repository.NewPlaylistRepository(db)
	contents := repository.NewContentRepository(db)
	settings := repository.NewSettingRepository(db)

	// 4. Redis-backed pieces, with single-instance fallbacks
	var (
		ledger    repository.NonceLedger
		purger    repository.NoncePurger
		publisher queue.Publisher
		limiter   signmw.Limiter
		jobs      []worker.Job
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		if err := rdb.PingContext(ctx); err != nil {
			return err
		}
		health.AddCheck("redis", rdb)

		ledger = cache.NewRedisNonceLedger(rdb.Client, clk.Now, logger)
		publisher = queue.NewRedisPublisher(rdb.Client, uuid.NewString(), hub)
		limiter = cache.NewRateLimiter(rdb.Client, cfg.RateLimitPerMinute, time.Minute)
		jobs = append(jobs, queue.NewRelay(rdb.Client, hub))
		logger.Info("redis enabled: nonce ledger, rate limiting and event relay")
	} else {
		pgLedger := repository.NewNonceLedger(db)
		ledger, purger = pgLedger, pgLedger
		publisher = queue.NewLocalPublisher(hub)
		logger.Warn("REDIS_URL not set: nonces in postgres, no rate limiting, events stay on this instance")
	}

	storage, err := service.NewR2Storage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init content storage: %w", err)
	}

	// 5. Services
	registration := service.NewRegistrationService(credentials, clk, service.RegistrationConfig{
		PairingCodeTTL:    cfg.PairingCodeTTL,
		PairingSessionTTL: cfg.PairingSessionTTL,
	}, logger, collector)

	challenges, err := service.NewChallengeService(displays, keys, ledger, clk,
		cfg.ChallengeTokenSecret, cfg.ChallengeTTL, logger, collector)
	if err != nil {
		return fmt.Errorf("failed to init challenge service: %w", err)
	}

	verifier := service.NewVerifier(displays, keys, ledger, clk, service.VerifierConfig{
		ClockSkew: cfg.ClockSkew,
		NonceTTL:  cfg.NonceTTL,
	}, logger, collector)

	manifests := service.NewManifestService(schedules, playlists, contents, settings, storage, clk,
		service.ManifestConfig{
			Location:       cfg.Location(),
			ContentURLTTL:  cfg.ContentURLTTL,
			PresignWorkers: cfg.PresignWorkers,
		}, logger, collector)

	displayOps := service.NewDisplayService(displays, keys, publisher, clk, cfg.HeartbeatPushManifest, logger)
	settingsOps := service.NewSettingsService(settings, publisher, clk, logger)

	// 6. Background jobs
	jobs = append(jobs, worker.NewSweeper(credentials, purger, clk, cfg.SweepInterval, collector))
	manager := worker.NewManager(workerBackoff, jobs...)
	manager.Start(ctx)
	defer manager.Stop()

	// 7. Setup Server
	router := transport.NewRouter(transport.RouterConfig{
		RegistrationHandler: handler.NewRegistrationHandler(registration, logger),
		ChallengeHandler:    handler.NewChallengeHandler(challenges, logger),
		DisplayHandler:      handler.NewDisplayHandler(manifests, displayOps, hub, logger),
		AdminHandler:        handler.NewAdminHandler(registration, displayOps, settingsOps, logger),
		Verifier:            verifier,
		AdminJWTSecret:      cfg.AdminJWTSecret,
		RateLimiter:         limiter,
		Metrics:             collector,
		Health:              health,
		Logger:              logger,
	})

	return transport.NewServer(cfg.ServerPort, router, logger).Start(ctx)
}
