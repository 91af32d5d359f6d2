package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"user-api/internal/config"
	"user-api/internal/db"
	"user-api/internal/email"
	apihttp "user-api/internal/http"
	"user-api/internal/repository"
	"user-api/internal/service"
	"user-api/internal/storage"
)

func newServeCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if migrateFirst {
				if err := withMigrator(func(m *db.Migrator) error { return m.Up() }); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	store, staticDir, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	mailer := email.NewAsyncSender(logger, emailSender, 30*time.Second)

	window := time.Duration(cfg.AttemptWindowMinutes) * time.Minute
	loginLimiter := service.NewMemoryAttemptLimiter(window, cfg.LoginMaxAttempts)
	verifyLimiter := service.NewMemoryAttemptLimiter(window, cfg.VerifyMaxAttempts)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiters", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisAttemptLimiter(logger, redisClient, "login", window, cfg.LoginMaxAttempts)
			verifyLimiter = service.NewRedisAttemptLimiter(logger, redisClient, "verify", window, cfg.VerifyMaxAttempts)
		}
		cancel()
	}

	if cfg.JWTTTLMinutes <= 0 {
		logger.Warn("jwt expiry disabled, tokens stay valid until the secret rotates")
	}
	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, time.Duration(cfg.JWTTTLMinutes)*time.Minute)
	hasher := service.NewPasswordHasher(service.Argon2Params{
		Memory:      cfg.Argon2MemoryKB,
		Time:        cfg.Argon2Time,
		Parallelism: cfg.Argon2Parallelism,
	})
	userRepo := repository.NewPgUserRepository(pool)

	authSvc := service.NewAuthService(logger, userRepo, hasher, jwtSvc, mailer, service.AuthOptions{
		LoginLimiter:    loginLimiter,
		VerifyLimiter:   verifyLimiter,
		DefaultAvatar:   cfg.DefaultAvatarURL(),
		VerificationURL: cfg.VerificationURL,
	})
	userSvc := service.NewUserService(logger, userRepo, hasher, store)

	router := apihttp.NewRouter(logger,
		apihttp.RouterConfig{APIPrefix: cfg.APIPrefix, StorageDir: staticDir},
		jwtSvc,
		apihttp.NewAuthHandler(logger, authSvc),
		apihttp.NewUserHandler(logger, userSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("api_prefix", cfg.APIPrefix),
			zap.String("storage", cfg.StorageBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	mailer.Wait()
	return nil
}

// newObjectStorage elige el backend de avatares. Para "local" devuelve además el directorio a servir.
func newObjectStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, string, error) {
	switch cfg.StorageBackend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, "", err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, "", err
		}
		return client, "", nil
	case "local", "":
		local := storage.NewLocalStorage(cfg.StorageDir, cfg.PublicBaseURL)
		if err := local.EnsureBucket(ctx); err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	}
	return nil, "", fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
