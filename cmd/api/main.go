// Package main is the entrypoint for the BlockChat auth server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/blockchat/blockchat/internal/auth"
	"github.com/blockchat/blockchat/internal/cache"
	"github.com/blockchat/blockchat/internal/config"
	"github.com/blockchat/blockchat/internal/events"
	"github.com/blockchat/blockchat/internal/handler"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/middleware"
	"github.com/blockchat/blockchat/internal/repository"
	"github.com/blockchat/blockchat/internal/server"
	"github.com/blockchat/blockchat/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Token issuer
	var issuer auth.TokenIssuer = auth.NewOpaqueIssuer()
	if cfg.TokenSecret != "" {
		signed, err := auth.NewSignedIssuer(cfg.TokenSecret)
		if err != nil {
			return err
		}
		issuer = signed
	}

	// Initialize credential store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Reset to the demo dataset
	demo, err := repository.InitStore(ctx, store)
	if err != nil {
		store.Close()
		return err
	}
	logger.Info("store initialized", "driver", cfg.StoreDriver, "demo_user_id", demo.ID)

	// Initialize cache; rate limiting is off without it
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			store.Close()
			return err
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	// Metrics
	var recorder metrics.Recorder = metrics.NewNoop()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder, metricsHandler = prom, prom.Handler()
	}

	// Flow event feed
	var publisher handler.EventPublisher
	var eventPublisher *events.Publisher
	if cacheClient != nil && cfg.EventsEnabled {
		eventPublisher = events.NewPublisher(cacheClient.Client(), logger, recorder)
		publisher = eventPublisher
		logger.Info("flow event stream enabled", "stream", events.StreamKey)
	}

	// Initialize services and handlers
	authService := service.NewAuthService(store, issuer, cfg.Pacing(), recorder)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	routerCfg := server.RouterConfig{
		Logger:           logger,
		Root:             handler.New(),
		Auth:             handler.NewAuthHandler(authService, logger, publisher),
		Metrics:          recorder,
		MetricsHandler:   metricsHandler,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		CORS:             corsCfg,
		IsDevelopment:    cfg.IsDevelopment(),
		MaxBodySize:      cfg.MaxRequestBodySize,
	}
	if eventPublisher != nil {
		routerCfg.Events = handler.NewEventsHandler(eventPublisher, logger)
	}
	if cacheClient != nil {
		routerCfg.Health = handler.NewHealthHandler(store, cacheClient)
		routerCfg.Limiter = cacheClient
	} else {
		routerCfg.Health = handler.NewHealthHandler(store, nil)
	}

	srv := server.New(server.NewRouter(routerCfg), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("store", func(context.Context) error {
		store.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}
	if eventPublisher != nil {
		// Registered after redis so it drains before the client closes.
		srv.OnShutdown("events", eventPublisher.Close)
	}

	endpoints := []string{"POST /api/login", "POST /api/register", "GET /api/health"}
	if routerCfg.Events != nil {
		endpoints = append(endpoints, "GET /api/events")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"stage_delay", cfg.StageDelay,
		"error_delay", cfg.ErrorDelay,
		"endpoints", endpoints,
		"demo_email", repository.DemoEmail,
		"demo_password", repository.DemoPassword,
	)

	return srv.Run(ctx)
}

// openStore connects the configured credential store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.StoreDriver != config.StorePostgres {
		return repository.NewMemory(), nil
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, err
	}
	logger.Info("connected to database")
	return repo, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces secrets embedded in driver errors.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
