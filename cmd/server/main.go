package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/catalog"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/config"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/invoice"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/obs"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/router"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/service"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store/memory"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store/postgres"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/ws"
)

const metricsNamespace = "kunafa_pos"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, catalog runs uncached")
			rdb = nil
		} else {
			logger.Info().Msg("cache: redis")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	catalogSvc := catalog.NewService(st, catalog.NewCache(rdb, cfg.CatalogCacheTTL), logger)
	allocator := invoice.NewAllocator(catalogSvc, st, invoice.AllocatorConfig{
		OrgTag: cfg.OrgTag,
		Codes:  cfg.BranchPrefixes,
	}, logger)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	orderSvc := service.NewOrderService(st, allocator, cfg.Policy, logger,
		service.WithPublisher(hub),
		service.WithMetrics(obs.NewOrderMetrics(metricsNamespace, reg)),
		service.WithStoreTimeout(cfg.StoreTimeout),
	)

	handler := router.New(cfg, router.Deps{
		Store:    st,
		Users:    st,
		Catalog:  catalogSvc,
		Orders:   orderSvc,
		Hub:      hub,
		Logger:   logger,
		Metrics:  obs.NewHTTPMetrics(metricsNamespace, nil, reg),
		Gatherer: reg,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.AppEnv).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// openStore uses Postgres when DATABASE_URL is set and an in-memory store
// loaded with the demo dataset otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("DATABASE_URL is required outside development")
		}
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store with demo data")
		return memory.NewSeeded(bcrypt.DefaultCost)
	}

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("store: postgres")
	return postgres.New(pool), nil
}
