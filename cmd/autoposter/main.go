package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"social_autoposter/internal/api"
	"social_autoposter/internal/config"
	"social_autoposter/internal/events"
	"social_autoposter/internal/generator"
	"social_autoposter/internal/metrics"
	"social_autoposter/internal/platform"
	"social_autoposter/internal/ratelimit"
	"social_autoposter/internal/scheduler"
	"social_autoposter/internal/service"
	"social_autoposter/internal/storage/postgres"
	"social_autoposter/internal/timing"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one batch and one dispatch per platform, then exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// A nil interface, not a typed nil, disables post events.
	var eventPublisher service.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		eventPublisher = rabbitMQ
	}

	limits := ratelimit.LimitsFromConfig(cfg.RateLimit)
	var limiter service.RateLimiter
	var rdb *redis.Client
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		limiter = ratelimit.NewRedis(rdb, cfg.Redis.KeyPrefix, limits)
	default:
		limiter = ratelimit.New(limits)
	}

	gen, err := generator.NewOpenAI(cfg.Generator, logger)
	if err != nil {
		logger.Error("failed to create content generator", "error", err)
		os.Exit(1)
	}

	postStore := postgres.NewPostStore(db)
	analyticsStore := postgres.NewAnalyticsStore(db)
	txManager := postgres.NewTransactionManager(db)

	var (
		publishers     []service.Publisher
		authenticators []scheduler.Authenticator
	)
	for _, p := range platform.FromConfig(cfg, m, logger) {
		publishers = append(publishers, p)
		authenticators = append(authenticators, p)
	}
	if len(publishers) == 0 {
		logger.Error("no platform enabled")
		os.Exit(1)
	}

	selector := timing.NewSelector(cfg.Schedule.OptimalHours, nil)

	dispatcher := service.NewDispatchService(postStore, gen, publishers, limiter, eventPublisher, m, logger)
	planner := service.NewPlannerService(postStore, gen, selector, m, logger, cfg.Batch)
	collector := service.NewAnalyticsService(postStore, analyticsStore, txManager, publishers, m, logger)
	cleaner := service.NewCleanupService(postStore, cfg.Schedule.FailedRetention, logger)

	sched := scheduler.New(scheduler.Deps{
		Publishers: authenticators,
		Dispatcher: dispatcher,
		Planner:    planner,
		Collector:  collector,
		Cleaner:    cleaner,
		Posts:      postStore,
		Limiter:    limiter,
		Selector:   selector,
		Metrics:    m,
	}, cfg.Schedule, cfg.Themes, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !sched.Initialize(ctx) {
		logger.Error("no platform could be authenticated")
		closeAll(logger, eventPublisher, rdb, db)
		os.Exit(1)
	}

	if *once {
		runOnce(ctx, sched, planner, dispatcher, cfg.Themes, logger)
		closeAll(logger, eventPublisher, rdb, db)
		return
	}

	srv := api.NewServer(cfg.HTTP.Addr, api.NewHandler(sched, postStore, reg, logger))
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			sched.Stop()
		}
	}()

	sched.RegisterCloser(shutdownCloser{srv: srv, timeout: cfg.Schedule.StopTimeout})
	if eventPublisher != nil {
		sched.RegisterCloser(eventPublisher)
	}
	if rdb != nil {
		sched.RegisterCloser(rdb)
	}
	sched.RegisterCloser(db)

	logger.Info("starting social autoposter",
		"platforms", cfg.EnabledPlatforms(),
		"themes", cfg.Themes,
		"poll_interval", cfg.Schedule.PollInterval,
	)

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	<-sched.Done()
	logger.Info("social autoposter stopped")
}

// runOnce plans one batch and dispatches once per authenticated platform.
func runOnce(ctx context.Context, sched *scheduler.Scheduler, planner *service.PlannerService, dispatcher *service.DispatchService, themes []string, logger *slog.Logger) {
	platforms := sched.Status().AuthenticatedPlatforms

	if _, err := planner.Run(ctx, platforms, themes); err != nil {
		logger.Error("batch generation failed", "error", err)
	}

	for _, p := range platforms {
		theme := themes[rand.IntN(len(themes))]
		res := dispatcher.Run(ctx, p, theme)
		logger.Info("dispatch finished",
			"platform", p,
			"theme", theme,
			"outcome", res.Outcome,
			"post_id", res.PostID,
		)
	}
}

type shutdownCloser struct {
	srv     *http.Server
	timeout time.Duration
}

func (c shutdownCloser) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.srv.Shutdown(ctx)
}

func closeAll(logger *slog.Logger, eventPublisher service.EventPublisher, rdb *redis.Client, db *sqlx.DB) {
	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			logger.Warn("close event publisher", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = db.Close()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
