// Package main запускает HTTP-сервер сервиса корпоративных обедов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/azamatrasuli/business-crm-sub000/internal/audit"
	"github.com/azamatrasuli/business-crm-sub000/internal/clock"
	"github.com/azamatrasuli/business-crm-sub000/internal/config"
	"github.com/azamatrasuli/business-crm-sub000/internal/handler"
	"github.com/azamatrasuli/business-crm-sub000/internal/idempotency"
	"github.com/azamatrasuli/business-crm-sub000/internal/pricing"
	"github.com/azamatrasuli/business-crm-sub000/internal/repository"
	"github.com/azamatrasuli/business-crm-sub000/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	// Redis не обязателен: без него компенсационные выплаты проводятся
	// без защиты от повторов.
	var idem idempotency.Store = idempotency.Disabled{}
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		idem = idempotency.NewRedisStore(rdb, "lunchcrm")
	}

	sink := audit.NewPostgresSink(repo.Pool())

	svc := service.NewService(repo, clock.System{}, pricing.DefaultTable(), sink, idem, logger, cfg.FreezeWeeklyLimit)
	defer svc.Close()

	h := handler.NewHandler(svc, logger)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting lunchcrm server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
