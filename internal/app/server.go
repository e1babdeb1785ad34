package app

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"sponsor-dock/internal/api"
	"sponsor-dock/internal/config"
	"sponsor-dock/internal/inventory"
	"sponsor-dock/internal/storage"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Spreadsheet store
	store, err := storage.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init sheets store")
	}

	// Inventory cache
	cache := inventory.NewCache(store, cfg.FreshWindow(), cfg.StaleWindow())
	if err := cache.Refresh(rootCtx); err != nil {
		// Tolerated: the cache retries lazily on the first request.
		log.Warn().Err(err).Msg("warm-up fetch failed")
	}

	// HTTP
	h := api.NewHandler(cache, cfg)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background refresher keeps request paths off the slow fetch
	go refreshLoop(rootCtx, cache, cfg.RefreshInterval())

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

func refreshLoop(ctx context.Context, cache *inventory.Cache, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("refresher stopped")
			return
		case <-time.After(jitter(interval)):
			if err := cache.Refresh(ctx); err != nil {
				log.Error().Err(err).Msg("background refresh")
			}
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x–1.5x
	return time.Duration(float64(base) * factor)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
