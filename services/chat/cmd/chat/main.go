package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"wisechat/internal/util"
	"wisechat/pkg/storage"
	"wisechat/services/chat/internal/app"
	"wisechat/services/chat/internal/config"
	"wisechat/services/chat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("chat server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	appCfg := app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		SecretKey:       cfg.SecretKey,
		TokenTTL:        cfg.TokenTTL(),
		FileStoragePath: cfg.FileStoragePath,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		OpeningMessage:  cfg.OpeningMessage,
	}
	if cfg.MinioEndpoint != "" {
		blobs, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		appCfg.Blobs = blobs
		logger.Info("attachments stored in object storage", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin, err := appCore.EnsureSuperuser(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("provision superuser: %w", err)
	}
	logger.Info("superuser ready", "user_id", admin.ID, "username", admin.Username)

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		AppName:                  cfg.AppName,
		AllowedOrigins:           cfg.AllowedOrigins,
		TrustedProxies:           cfg.TrustedProxies,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes(),
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chat server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down chat server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
