package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/costtrack/costtrack/internal/activity"
	"github.com/costtrack/costtrack/internal/auth"
	"github.com/costtrack/costtrack/internal/cache"
	"github.com/costtrack/costtrack/internal/config"
	"github.com/costtrack/costtrack/internal/handler"
	"github.com/costtrack/costtrack/internal/jobs"
	"github.com/costtrack/costtrack/internal/logging"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/migrate"
	"github.com/costtrack/costtrack/internal/repository"
	"github.com/costtrack/costtrack/internal/server"
	"github.com/costtrack/costtrack/internal/service"
	"github.com/costtrack/costtrack/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(false)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Apply pending migrations, then run the HTTP API",
	Long: `start applies pending migrations and only binds the listen port when they
succeed. A failed migration exits with status 1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(true)
	},
}

func runServer(migrateFirst bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", logging.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", logging.RedactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database", "dialect", store.Dialect())

	if migrateFirst {
		if err := migrateStore(ctx, store); err != nil {
			logger.Error("migration failed, not starting server", "error", err)
			store.Close()
			return err
		}
	}

	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", logging.SanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", logging.RedactURL(cfg.RedisURL)),
			)
			store.Close()
			return err
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, using in-process revocation, rate limiting and activity writes")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var recorder metrics.Recorder = metrics.NewNoop()
	var metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	if cfg.MetricsEnabled {
		recorder = metrics.NewPrometheus(registry)
	} else {
		metricsHandler = nil
	}

	app, err := buildApp(cfg, store, cacheClient, recorder)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		store.Close()
		if cacheClient != nil {
			cacheClient.Close()
		}
		return err
	}

	router := handler.NewRouter(handler.RouterConfig{
		Logger:         logger,
		Metrics:        recorder,
		MetricsHandler: metricsHandler,
		Auth:           handler.NewAuthHandler(app.auth, app.cookies, logger),
		Costs:          handler.NewCostHandler(app.costs, logger),
		Health:         handler.NewHealthHandler(app.health),
		Authenticator:  app.auth,
		AuthLimiter:    app.limiter,
		CORSOrigins:    cfg.GetCORSAllowedOrigins(),
		GlobalRPS:      cfg.RateLimitRPS,
		GlobalBurst:    cfg.RateLimitBurst,
		MaxBodySize:    cfg.MaxRequestBodySize,
		HSTS:           cfg.CookieSecure,
	})

	srv := server.New(router, server.Options{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Closed last: registered first.
	srv.OnShutdown("database", func(context.Context) error { return store.Close() })
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })

		worker := activity.NewWorker(cacheClient.Client(), store, logger, activity.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("activity worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("activity-worker", worker.Shutdown)
	}

	if app.notifier != nil {
		app.notifier.Start()
		srv.OnShutdown("webhook", app.notifier.Shutdown)
	}

	scheduler := jobs.NewScheduler(logger)
	pruner := jobs.NewActivityPruner(store, cfg.ActivityRetention, time.Now, logger)
	if err := scheduler.Add("activity-prune", jobs.PruneSchedule, time.Minute, pruner.Run); err != nil {
		return err
	}
	scheduler.Start()
	srv.OnShutdown("scheduler", scheduler.Shutdown)

	logger.Info("starting server",
		"addr", cfg.Addr(),
		"env", cfg.AppEnv,
		"version", version,
	)
	return srv.RunContext(ctx)
}

// app holds the services shared by the HTTP layer.
type app struct {
	auth     *service.AuthService
	costs    *service.CostService
	cookies  auth.CookieConfig
	limiter  cache.IPLimiter
	health   map[string]handler.HealthChecker
	notifier *webhook.Notifier
}

// buildApp wires services, choosing Redis-backed implementations when a
// cache client is available.
func buildApp(cfg *config.Config, store repository.Store, cacheClient *cache.Cache, recorder metrics.Recorder) (*app, error) {
	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params)
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}
	tokens := auth.NewTokenIssuer(cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, nil)

	var (
		denylist  cache.Denylist
		limiter   cache.IPLimiter
		publisher activity.Publisher
	)
	health := map[string]handler.HealthChecker{"database": store, "redis": nil}
	if cacheClient != nil {
		denylist = cacheClient
		limiter = cache.NewRedisIPLimiter(cacheClient, cfg.AuthRateLimitPerMinute, cfg.AuthRateLimitPerMinute)
		publisher = activity.NewStreamPublisher(cacheClient.Client(), logger, recorder)
		health["redis"] = cacheClient
	} else {
		denylist = cache.NewMemoryDenylist(nil)
		limiter = cache.NewMemoryIPLimiter(cfg.AuthRateLimitPerMinute, cfg.AuthRateLimitPerMinute)
		publisher = activity.NewDirectPublisher(store, logger, recorder)
	}

	var notifier *webhook.Notifier
	if cfg.WebhookURL != "" {
		if err := webhook.ValidateTargetURL(cfg.WebhookURL, cfg.IsDevelopment()); err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_URL: %w", err)
		}
		notifier = webhook.NewNotifier(publisher, webhook.Options{
			URL:    cfg.WebhookURL,
			Secret: cfg.WebhookSecret,
		}, logger, recorder)
		publisher = notifier
	}

	return &app{
		auth:  service.NewAuthService(store, hasher, tokens, denylist, logger, recorder),
		costs: service.NewCostService(store, store, publisher, logger, recorder),
		cookies: auth.CookieConfig{
			Secure:     cfg.CookieSecure,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
		},
		limiter:  limiter,
		health:   health,
		notifier: notifier,
	}, nil
}

// migrateStore applies pending migrations on the database behind store.
func migrateStore(ctx context.Context, store repository.Store) error {
	var (
		m   *migrate.Migrator
		err error
	)
	if sqliteStore, ok := store.(*repository.SQLite); ok {
		m, err = migrate.New(sqliteStore.DB(), repository.DialectSQLite)
	} else {
		m, err = migrate.Open(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	results, err := m.Up(ctx)
	for _, r := range results {
		logger.Info("migration applied", "version", r.Version, "source", r.Source, "duration", r.Duration)
	}
	return err
}
