package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/redmonkez12/cicero/internal/auth"
	"github.com/redmonkez12/cicero/internal/config"
	"github.com/redmonkez12/cicero/internal/database"
	"github.com/redmonkez12/cicero/internal/email"
	"github.com/redmonkez12/cicero/internal/generation"
	httpServer "github.com/redmonkez12/cicero/internal/http"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/metrics"
	"github.com/redmonkez12/cicero/internal/ratelimit"
	"github.com/redmonkez12/cicero/internal/reset"
	"github.com/redmonkez12/cicero/internal/trip"
	"github.com/redmonkez12/cicero/internal/user"
)

const resetPurgeInterval = time.Hour

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"reset_store", cfg.Auth.ResetStore,
	)

	// Initialize database connection
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// Initialize password reset tokens
	var resetStore reset.Store
	var sqlResets *reset.SQLStore
	switch cfg.Auth.ResetStore {
	case "redis":
		resetStore = reset.NewRedisStore(redisClient)
	default:
		sqlResets = reset.NewSQLStore(db)
		resetStore = sqlResets
	}
	resetService, err := reset.NewService(resetStore, reset.Config{
		Secret:  []byte(cfg.Auth.ResetSecret),
		Metrics: collector,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reset tokens: %w", err)
	}

	// Initialize PASETO service
	pasetoService, err := auth.NewPasetoService([]byte(cfg.Auth.PasetoKey))
	if err != nil {
		return fmt.Errorf("failed to initialize PASETO service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(email.Config{
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		FrontendURL:  cfg.Email.FrontendURL,
	}, logger)
	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP_HOST is not set, password reset emails will not be sent")
	}

	var google auth.OAuthProvider
	if cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	} else {
		logger.Info("google sign-in disabled")
	}

	// Initialize auth service
	authService := auth.NewService(
		user.NewRepository(db),
		pasetoService,
		resetService,
		emailService,
		google,
		logger,
		cfg.Auth.SessionDuration,
	)

	// Initialize generation
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, generation requests will fail")
	}
	tripRepo := trip.NewRepository(db)
	pipeline := generation.NewPipeline(
		generation.NewOpenAICompleter(generation.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}),
		tripRepo,
		generation.Config{
			Timeout: cfg.OpenAI.GenerationTimeout,
			Metrics: collector,
			Logger:  logger,
		},
	)

	// Initialize router
	router := httpServer.NewRouter(cfg, httpServer.Routes{
		Auth: auth.NewHandler(
			authService,
			ratelimit.NewLimiter(redisClient),
			!cfg.Server.IsDevelopment(), // isProduction
			cfg.Auth.SessionDuration,
			cfg.Email.FrontendURL,
		),
		AuthMiddleware:    auth.NewMiddleware(pasetoService),
		Trips:             trip.NewHandler(tripRepo),
		Generation:        generation.NewHandler(pipeline),
		GenerationLimiter: ratelimit.NewUserLimiter(cfg.RateLimit.GenerationsPerMinute, auth.UserKey),
		Metrics:           metrics.Handler(registry),
		DB:                db,
	}, logger)

	// Initialize HTTP server
	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	if sqlResets != nil {
		go purgeResetsPeriodically(ctx, sqlResets, logger)
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

func purgeResetsPeriodically(ctx context.Context, store *reset.SQLStore, logger *logging.Logger) {
	ticker := time.NewTicker(resetPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("failed to purge reset records", "error", err.Error())
				continue
			}
			if n > 0 {
				logger.Info("purged expired reset records", "count", n)
			}
		}
	}
}
