// Package main запускает HTTP-сервер API бронирования отелей.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/smarthotel/internal/config"
	"github.com/mmeshcher/smarthotel/internal/events"
	"github.com/mmeshcher/smarthotel/internal/handler"
	"github.com/mmeshcher/smarthotel/internal/lock"
	"github.com/mmeshcher/smarthotel/internal/middleware"
	"github.com/mmeshcher/smarthotel/internal/service"
	"github.com/mmeshcher/smarthotel/internal/storeclient"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store := storeclient.NewClient(cfg.StoreAddress, cfg.StoreTimeout, logger)

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()
		locker = lock.NewRedis(rdb, 0, logger)
	}

	var publisher service.Publisher = events.Nop{}
	if cfg.RabbitMQURL != "" {
		rabbit := events.NewRabbitPublisher(cfg.RabbitMQURL, logger)
		defer rabbit.Close()
		publisher = rabbit
	}

	svc := service.NewService(store, locker, publisher, logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	svc.StartReconciliation(ctx, cfg.ReconcileInterval)

	g.Go(func() error {
		sugar.Infow("starting booking server", "addr", cfg.RunAddress, "store", cfg.StoreAddress)
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
