package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/foliolab/folio/internal/api"
	"github.com/foliolab/folio/internal/config"
	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/gitsync"
	"github.com/foliolab/folio/internal/health"
	"github.com/foliolab/folio/internal/kv"
	"github.com/foliolab/folio/internal/metrics"
	"github.com/foliolab/folio/internal/notify"
	"github.com/foliolab/folio/internal/project"
	"github.com/foliolab/folio/internal/sched"
	"github.com/foliolab/folio/internal/snapcache"
	"github.com/foliolab/folio/internal/tracker"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Bool("github_enabled", cfg.GitHubEnabled()).
		Bool("kv_rest_enabled", cfg.KVRestEnabled()).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting folio backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()
	checker := health.NewChecker(logger)

	// Key-value backend: remote REST store when configured, in-memory otherwise.
	var backend kv.Store
	if cfg.KVRestEnabled() {
		backend = kv.NewRESTStore(cfg.KVRestURL, cfg.KVRestToken, logger)
		logger.Info().Msg("using remote key-value store")
	} else {
		backend = kv.NewMemoryStore()
		logger.Warn().Msg("no remote key-value store configured — state will not survive restarts")
	}
	checker.Register("kv", func(ctx context.Context) health.Status {
		if err := backend.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// GitHub client: App mode wins when both are configured.
	var ghClient *github.Client
	switch {
	case cfg.GitHubAppEnabled():
		ghClient, err = github.NewAppClient(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubPrivateKeyPath, backend, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init GitHub App client")
		}
		logger.Info().Msg("GitHub App client initialized")
	case cfg.GitHubToken != "":
		ghClient = github.NewClient(cfg.GitHubToken, logger)
		logger.Info().Msg("GitHub token client initialized")
	default:
		ghClient = github.NewClient("", logger)
		logger.Warn().Msg("no GitHub credentials configured — running with unauthenticated quota")
	}
	checker.Register("github", func(ctx context.Context) health.Status {
		if _, err := ghClient.RateLimit(ctx); err != nil {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	// Project records
	projects := project.NewKVStore(backend, logger)
	if cfg.ProjectSeedPath != "" {
		if err := project.Seed(ctx, projects, cfg.ProjectSeedPath, logger); err != nil {
			logger.Warn().Err(err).Msg("project seed failed (non-fatal)")
		}
	}

	// Sync engine
	engine := gitsync.New(ghClient, projects, m, logger, gitsync.Options{
		BatchSize:  cfg.SyncBatchSize,
		BatchDelay: cfg.SyncBatchDelay,
		Freshness:  cfg.SyncFreshness,
		RateFloor:  cfg.SyncRateFloor,
	})

	// Tracker store: bulk load, then periodic remote-wins reconcile.
	trackerStore := tracker.NewStore(backend, m, logger)
	if err := trackerStore.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("tracker load failed — starting with empty collections")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		trackerStore.Run(ctx, cfg.TrackerReconcileInterval)
	}()

	// Slack notifier (optional)
	var notifier *notify.Notifier
	if cfg.SlackEnabled() {
		notifier = notify.FromToken(cfg.SlackToken, cfg.SlackChannel, logger)
		logger.Info().Str("channel", cfg.SlackChannel).Msg("Slack notifications enabled")
	}

	// Scheduled bulk sync
	scheduler := sched.New(engine, notifier, cfg.SyncInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// HTTP surface
	previews := snapcache.New[*github.Snapshot](cfg.PreviewCacheSize, cfg.PreviewCacheTTL)
	handlers := api.NewHandlers(trackerStore, engine, checker, previews, cfg.CronSecret, logger)
	server := api.NewServer(api.ServerConfig{
		ListenAddr:  fmt.Sprintf(":%d", cfg.HTTPPort),
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	}, handlers, m, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("folio backend stopped")
}
