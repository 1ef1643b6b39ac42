package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/auth"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/client"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/config"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dedup"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dispatcher"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/handler"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/metrics"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/middleware"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/module"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/outcome"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/pipeline"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/registry"
	ws "github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/websocket"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/worker"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/pkg/logx"
)

// publishTimeout covers the publish endpoint's own reel processing wait
const publishTimeout = 3 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	log, logCloser := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    cfg.Logging.File,
	})
	defer logCloser.Close()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Scheduler.Timezone).Msg("invalid scheduler timezone")
	}

	if cfg.Auth.SharedSecret == "" {
		log.Warn().Msg("SHARED_SECRET is empty: trigger and publish endpoints will reject every call")
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	schedules, runStore, err := openStores(cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer runStore.Close()
	runLog := outcome.NewLogger(runStore, logx.Component(log, "outcome"))

	m := metrics.New()

	// Initialize WebSocket hub
	hub := ws.NewHub(logx.Component(log, "ws"))
	go hub.Run(ctx)

	// External clients fall back to mocks when not configured
	groqClient := client.NewGroqClient(&cfg.Groq, logx.Component(log, "groq"))
	renderClient := client.NewRenderClient(&cfg.Render)

	var generator client.Generator = client.MockGenerator{}
	if groqClient.IsConfigured() {
		generator = groqClient
	} else {
		log.Info().Msg("groq not configured, using mock generator")
	}

	var renderer client.Renderer = client.MockRenderer{}
	if renderClient.IsConfigured() {
		renderer = renderClient
	} else {
		log.Info().Msg("render service not configured, using mock renderer")
	}

	var mediaStore client.MediaStore = client.PassthroughStore{}
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Warn().Err(err).Msg("R2 client not initialized")
		} else {
			mediaStore = r2Client
		}
	} else {
		log.Info().Msg("R2 storage not configured, keeping renderer URLs")
	}

	poster := socialPoster(cfg, log)

	// Pipeline
	engine := dedup.NewEngine(runLog, cfg.Dedup.Window, cfg.Dedup.Threshold, logx.Component(log, "dedup"))
	executor := pipeline.NewExecutor(pipeline.Options{
		Generator:         generator,
		Renderer:          renderer,
		MediaStore:        mediaStore,
		Publisher:         client.NewHTTPPublisher(cfg.Auth.SharedSecret, publishTimeout),
		Dedup:             engine,
		Log:               runLog,
		StageTimeout:      cfg.Pipeline.StageTimeout,
		HistoryExclusions: cfg.Pipeline.HistoryExclusions,
		Notifier:          hub,
		Observer:          m,
		Logger:            logx.Component(log, "pipeline"),
	})

	modules, err := registry.New(
		module.NewQuoteModule(schedules, publishTarget(cfg, cfg.Modules.QuotesTarget, module.QuotesID)),
		module.NewCharacterModule(schedules, publishTarget(cfg, cfg.Modules.CharactersTarget, module.CharactersID)),
		module.NewReelModule(schedules, publishTarget(cfg, cfg.Modules.ReelsTarget, module.ReelsID)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register modules")
	}

	disp := dispatcher.New(dispatcher.Options{
		Registry:       modules,
		Runner:         executor,
		Location:       loc,
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		RunTimeout:     cfg.Scheduler.RunTimeout,
		Sinks:          []dispatcher.SummarySink{m, hub},
		Logger:         logx.Component(log, "dispatcher"),
	})

	trigger, err := newTrigger(cfg, loc, disp, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build scheduler trigger")
	}

	// Auth: Zitadel JWKS first, legacy HMAC as fallback
	var verifiers auth.Chain
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			verifiers = append(verifiers, jwksVerifier)
		}
	}
	if cfg.JWT.Secret != "" {
		verifiers = append(verifiers, auth.NewLegacyVerifier(cfg.JWT.Secret))
	}

	var apiAuthMiddleware fiber.Handler
	if cfg.Auth.Gateway {
		log.Info().Msg("gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(verifiers).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, logx.Component(log, "ratelimit"))

	// Handlers
	validate := handler.NewValidator()
	moduleIDs := make([]string, 0, len(modules.List()))
	for _, mod := range modules.List() {
		moduleIDs = append(moduleIDs, mod.ID())
	}
	healthHandler := handler.NewHealthHandler(map[string]bool{
		"groq":      groqClient.IsConfigured(),
		"render":    renderClient.IsConfigured(),
		"r2":        r2Client != nil,
		"auth":      len(verifiers) > 0 || cfg.Auth.Gateway,
		"publish":   cfg.Auth.SharedSecret != "",
		"scheduler": cfg.Scheduler.Mode != "off",
	}, moduleIDs)
	authHandler := handler.NewAuthHandler(verifiers)
	schedulerHandler := handler.NewSchedulerHandler(disp, validate)
	publishHandler := handler.NewPublishHandler(cfg.Auth.SharedSecret, modules, poster, validate, logx.Component(log, "publish"))
	historyHandler := handler.NewHistoryHandler(runLog)
	scheduleHandler := handler.NewScheduleHandler(schedules, modules, validate)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		logFormat = "${status} - ${latency} ${method} ${path} ${queryParams}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
		Output: logx.Component(log, "http"),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Auth-Token",
	}))

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// ForwardAuth verification endpoint (internal, called by the proxy)
	app.Get("/auth/verify", authHandler.Verify)

	// Machine-to-machine routes, guarded by the shared secret
	app.Post("/publish/:moduleId", publishHandler.Publish)
	app.Post("/api/scheduler/trigger",
		middleware.SharedSecret(cfg.Auth.SharedSecret),
		rateLimiter.TriggerLimit(cfg.RateLimit.TriggerPerMin),
		schedulerHandler.Trigger,
	)

	// Dashboard routes
	api := app.Group("/api", apiAuthMiddleware)
	api.Get("/history", historyHandler.List)
	api.Get("/runs/:runId", historyHandler.Run)
	api.Get("/schedules/:moduleId", scheduleHandler.List)
	api.Put("/schedules/:moduleId/:itemId", scheduleHandler.Put)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/runs", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, ws.AllRuns)
	}))
	app.Get("/ws/runs/:runId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("runId"))
	}))

	if err := trigger.Start(); err != nil {
		log.Fatal().Err(err).Str("mode", cfg.Scheduler.Mode).Msg("failed to start scheduler")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		trigger.Stop()
		stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Str("scheduler", cfg.Scheduler.Mode).Str("storage", cfg.Storage.Driver).Msg("server starting")
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug().Err(err).Msg("sd_notify failed")
	}
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server error")
	}
}

// openStores picks the schedule and run log backends for storage.driver
func openStores(cfg *config.Config, redisClient *redis.Client) (module.ScheduleStore, outcome.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return module.NewMemoryScheduleStore(), outcome.NewMemoryStore(), nil
	case "sqlite":
		store, err := outcome.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return module.NewRedisScheduleStore(redisClient), store, nil
	case "redis":
		return module.NewRedisScheduleStore(redisClient), outcome.NewRedisStore(redisClient), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// publishTarget defaults a module's publish endpoint to this server
func publishTarget(cfg *config.Config, configured, moduleID string) string {
	if configured != "" {
		return configured
	}
	return cfg.Server.PublicURL + "/publish/" + moduleID
}

func socialPoster(cfg *config.Config, log zerolog.Logger) client.SocialPoster {
	router := &client.PosterRouter{}
	ig := client.NewInstagramClient(&cfg.Instagram, logx.Component(log, "instagram"))
	if ig.IsConfigured() {
		router.Instagram = ig
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := client.NewTelegramClient(&cfg.Telegram)
		if err != nil {
			log.Warn().Err(err).Msg("telegram client not initialized")
		} else {
			router.Telegram = tg
		}
	}
	if router.Instagram == nil && router.Telegram == nil {
		log.Info().Msg("no social accounts configured, using mock poster")
		return client.MockPoster{}
	}
	return router
}

func newTrigger(cfg *config.Config, loc *time.Location, disp *dispatcher.Dispatcher, log zerolog.Logger) (worker.Trigger, error) {
	tlog := logx.Component(log, "scheduler")
	switch cfg.Scheduler.Mode {
	case "asynq":
		return worker.NewAsynqTrigger(worker.AsynqConfig{
			Redis: asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			Spec:        cfg.Scheduler.IntervalCron,
			Location:    loc,
			RunTimeout:  cfg.Scheduler.RunTimeout,
			Concurrency: cfg.Scheduler.TickConcurrency,
			LogLevel:    logx.ParseLevel(cfg.Logging.Level),
		}, worker.NewDispatchWorker(disp, tlog), tlog), nil
	case "local":
		return worker.NewCronTrigger(cfg.Scheduler.IntervalCron, loc, disp, tlog)
	default:
		tlog.Info().Msg("scheduled dispatch disabled, manual trigger only")
		return noopTrigger{}, nil
	}
}

type noopTrigger struct{}

func (noopTrigger) Start() error { return nil }
func (noopTrigger) Stop()        {}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
