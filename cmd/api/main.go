package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docpay/internal/config"
	"docpay/internal/core/orchestrator"
	"docpay/internal/delivery"
	httpx "docpay/internal/http"
	"docpay/internal/provider/daraja"
	"docpay/internal/services/audit"
	"docpay/internal/store/memory"
	"docpay/internal/store/postgres"
	"docpay/internal/store/redisx"
	"docpay/internal/store/repositories"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init DB (audit archive)
	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()
	repo := postgres.NewRepo(pool)

	// Delivery dedup guard: Redis when configured, in-process otherwise
	var guard repositories.DeliveryGuard = memory.NewDeliveryGuard()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis ping fail")
		}
		defer rdb.Close()
		guard = redisx.NewDeliveryGuard(rdb, 0)
	}

	// Daraja gateway and the confirmation orchestrator
	gw := daraja.New(cfg)
	notifier := delivery.NewHTTPNotifier(cfg.Delivery.URL)
	orch := orchestrator.New(cfg.Confirm, gw, memory.NewSessionStore(), repo, guard, notifier)
	defer orch.Shutdown()

	// Router
	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:       cfg,
		Orchestrator: orch,
		AuditService: audit.NewService(repo),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().
			Dur("max_wait", orch.MaxWait()).
			Msgf("docpay API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info().Msg("server stopped")
}
