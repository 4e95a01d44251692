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

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/handler"
	"account_service/internal/mailer"
	"account_service/internal/metrics"
	"account_service/internal/service"
	"account_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := mustLoadConfig()

	log := setupLogger(cfg.Env)
	log.Info("starting account service", slog.String("env", cfg.Env))

	if cfg.UsesDefaultSecret() {
		log.Warn("auth.jwt_secret is the built-in default; set JWT_SECRET before exposing this service")
	}

	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", slog.Any("error", err))
		return err
	}
	defer st.Close()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	notifier, err := mailer.New(cfg.Mail, log)
	if err != nil {
		log.Error("failed to init mailer", slog.Any("error", err))
		return err
	}

	m := metrics.New()

	svc := service.NewService(st, hasher, tokens, notifier, m, log, service.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
	})

	created, err := svc.EnsureAdmin(ctx, service.AdminAccount{
		Name:     cfg.Admin.Name,
		Username: cfg.Admin.Username,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
	})
	if err != nil {
		log.Error("failed to bootstrap admin account", slog.Any("error", err))
		return err
	}
	if created {
		log.Info("bootstrap admin account created", slog.String("username", cfg.Admin.Username))
	}

	h := handler.NewHandler(svc, m, log)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", slog.String("address", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		log.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.Any("error", err))
		return err
	}

	log.Info("server stopped")

	return nil
}

// openStorage connects to the configured backend. PostgreSQL is retried
// until it accepts connections, then migrated when db.migrate is set.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	const op = "main.openStorage"

	if cfg.DB.Driver == config.DriverMemory {
		log.Warn("using in-memory storage; accounts are lost on exit")
		return storage.NewMemoryStorage(), nil
	}

	var st *storage.PostgresStorage

	err := retry.Do(ctx, connectBackoff(cfg.DB), func(ctx context.Context) error {
		s, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
		if err != nil {
			log.Warn("database not ready", slog.Any("error", err))
			return retry.RetryableError(err)
		}

		st = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.DB.Migrate {
		if err := storage.Migrate(ctx, cfg.DB.DbURL); err != nil {
			st.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("database migrations applied")
	}

	return st, nil
}

// connectBackoff makes ConnectAttempts tries in total, ConnectInterval apart.
func connectBackoff(cfg config.DB) retry.Backoff {
	var retries uint64
	if cfg.ConnectAttempts > 1 {
		retries = cfg.ConnectAttempts - 1
	}

	return retry.WithMaxRetries(retries, retry.NewConstant(cfg.ConnectInterval))
}
