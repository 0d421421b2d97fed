package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/blast-desk/internal/api"
	"github.com/LeventeLantos/blast-desk/internal/auth"
	"github.com/LeventeLantos/blast-desk/internal/cache"
	"github.com/LeventeLantos/blast-desk/internal/campaign"
	"github.com/LeventeLantos/blast-desk/internal/config"
	"github.com/LeventeLantos/blast-desk/internal/landing"
	"github.com/LeventeLantos/blast-desk/internal/repo"
	"github.com/LeventeLantos/blast-desk/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("blastdesk stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.Migrate(ctx, db); err != nil {
		return err
	}

	svc := campaign.NewService(campaign.NewPostgresStore(db), campaign.Options{
		DefaultCountry:        cfg.Campaign.DefaultCountry,
		MessageSoftCap:        cfg.Campaign.MessageSoftCap,
		CostPerRecipientCents: cfg.Campaign.CostPerRecipientCents,
	})

	var qrCache landing.PNGCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rc := cache.NewRedisCache(rdb, cfg.Redis.TTL)
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, QR codes will be rendered per request", "addr", cfg.Redis.Address, "error", err)
		} else {
			qrCache = rc
		}
	}

	lp, err := landing.New(cfg.Landing.NumberE164, cfg.Landing.Keyword, qrCache)
	if err != nil {
		return err
	}

	sweeper, err := scheduler.New("blast-sweeper", cfg.Sweeper.Interval, svc.CloseCompletedBlasts)
	if err != nil {
		return err
	}
	if cfg.Sweeper.Enabled {
		sweeper.Start()
	}
	defer sweeper.Stop()

	gate := auth.NewGate(auth.Secrets{
		Admin:     cfg.Auth.AdminPassword,
		Assistant: cfg.Auth.AssistantPassword,
		Max:       cfg.Auth.MaxPassword,
	}, cfg.Server.Production)

	h := api.NewHandler(svc, gate, sweeper, lp)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("blastdesk starting",
		"addr", cfg.Server.Address,
		"production", cfg.Server.Production,
		"redis", qrCache != nil,
		"sweeper", cfg.Sweeper.Enabled,
		"sweep_interval", cfg.Sweeper.Interval.String(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
