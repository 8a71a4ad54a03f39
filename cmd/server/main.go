package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plaxrec/internal/cache"
	"plaxrec/internal/config"
	"plaxrec/internal/handlers"
	"plaxrec/internal/logger"
	"plaxrec/internal/metrics"
	"plaxrec/internal/revenue"
	"plaxrec/internal/services"
	"plaxrec/internal/store"
	"plaxrec/internal/websocket"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "plaxrec-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"driver": cfg.DB.Driver,
		"policy": cfg.Distribution.Policy,
	})
	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logg *logger.Logger) (err error) {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, be.close()) }()

	var counter revenue.Counter
	if cfg.Redis.URL != "" {
		client, redisErr := cache.New(ctx, cache.Options{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if redisErr != nil {
			return fmt.Errorf("redis: %w", redisErr)
		}
		defer func() { err = multierr.Append(err, client.Close()) }()
		counter = client
	}
	resolver, err := revenue.NewResolver(cfg.Distribution.Policy, be.profiles, counter)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := websocket.NewHub()
	institutions := store.NewInstitutionCatalog()
	settlements := services.NewSettlementService(services.Deps{
		TxRunner:     be.txRunner,
		Profiles:     be.profiles,
		Batches:      be.batches,
		Transactions: be.transactions,
		Movements:    be.movements,
		Audit:        be.audit,
		Institutions: institutions,
		Resolver:     resolver,
		Rates:        cfg.Rates.Rates(),
		Hub:          hub,
		Metrics:      metrics.NewSettlement(registry),
		Logger:       logg,
	})
	profiles := services.NewProfileService(be.txRunner, be.profiles, be.audit, cfg.JWT.Secret, cfg.JWT.TokenTTL())

	handler := handlers.New(handlers.Deps{
		Config:       cfg,
		Settlements:  settlements,
		Profiles:     profiles,
		Lookup:       be.profiles,
		Batches:      be.batches,
		Transactions: be.transactions,
		Audit:        be.audit,
		Reconciler:   be.movements,
		Institutions: institutions,
		Hub:          hub,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:       logg,
	})
	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "plaxrec API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	shutdown, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-shutdown.Done():
	}

	logg.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
