// Package main is the entry point for the linkguard URL shortener.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/emadnahed/linkguard/internal/config"
	"github.com/emadnahed/linkguard/internal/idgen"
	"github.com/emadnahed/linkguard/internal/janitor"
	"github.com/emadnahed/linkguard/internal/ratelimit"
	"github.com/emadnahed/linkguard/internal/server"
	"github.com/emadnahed/linkguard/internal/services"
	"github.com/emadnahed/linkguard/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	allocator := idgen.NewAllocator(idgen.NewRandomGenerator(), st.mappings, idgen.AllocatorConfig{
		CodeLength:     cfg.URL.ShortCodeLen,
		FallbackLength: cfg.URL.FallbackCodeLen,
		MaxAttempts:    cfg.URL.AllocationAttempts,
	}, log)

	limiter := ratelimit.NewLimiter(st.windows, ratelimit.Config{
		Requests: cfg.Rate.Requests,
		Window:   cfg.Rate.Window,
	})

	srv := server.New(cfg, log, server.Dependencies{
		URLService:      services.NewURLService(allocator, st.mappings, cfg.URL.BaseURL),
		RedirectService: services.NewRedirectService(st.mappings),
		Limiter:         limiter,
		Checks:          st.checks,
	})

	var jan *janitor.Janitor
	if cfg.Rate.SweepInterval >= 0 {
		every := cfg.Rate.SweepInterval
		if every == 0 {
			every = cfg.Rate.Window
		}
		jan = janitor.New(janitor.Config{
			Interval: every,
			Window:   cfg.Rate.Window,
		}, st.sweeper, log)
	}

	log.Info("starting linkguard",
		"env", cfg.App.Env,
		"store", cfg.Store.Backend,
		"rate_limit", cfg.Rate.Requests,
		"rate_window", cfg.Rate.Window.String(),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	if jan != nil {
		g.Go(func() error {
			return jan.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
