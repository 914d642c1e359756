package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/finsearch/internal/cache"
	"github.com/utafrali/finsearch/internal/config"
	"github.com/utafrali/finsearch/internal/engine"
	esengine "github.com/utafrali/finsearch/internal/engine/elasticsearch"
	enginememory "github.com/utafrali/finsearch/internal/engine/memory"
	"github.com/utafrali/finsearch/internal/export"
	"github.com/utafrali/finsearch/internal/findologic"
	handler "github.com/utafrali/finsearch/internal/handler/http"
	"github.com/utafrali/finsearch/internal/repository"
	"github.com/utafrali/finsearch/internal/repository/memory"
	"github.com/utafrali/finsearch/internal/repository/postgres"
	"github.com/utafrali/finsearch/internal/service"
	"github.com/utafrali/finsearch/internal/streams"
	"github.com/utafrali/finsearch/migrations"
	"github.com/utafrali/finsearch/pkg/database"
	"github.com/utafrali/finsearch/pkg/health"
	"github.com/utafrali/finsearch/pkg/httpclient"
	"github.com/utafrali/finsearch/pkg/tracing"
)

// searchBackend is an in-shop engine that also completes search terms.
type searchBackend interface {
	engine.SearchEngine
	engine.Suggester
}

// App wires together all dependencies and runs the finsearch service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "finsearch",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	catalog, err := a.openCatalog(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	eng, err := a.openEngine(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	store, err := a.openCacheStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Product stream membership, shared by export pages and invalidated by reindex.
	resolver := streams.NewResolver(eng, cfg.ProductStreamPageSize, logger)
	membership := cache.New(store, resolver, cache.Config{Lifetime: cfg.ProductStreamCacheLifetime}, logger)

	// Search provider behind retries and a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.FindologicTimeout
	httpCfg.MaxRetries = cfg.FindologicMaxRetries
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("findologic"),
		logger,
	)
	provider := findologic.NewClient(breaker, findologic.NewQueryBuilder(cfg.FindologicBaseURL), logger)
	if cfg.DefaultShopKey != "" {
		healthHandler.RegisterOptional("findologic", func(ctx context.Context) error {
			shop, err := catalog.Shops.GetByKey(ctx, cfg.DefaultShopKey)
			if err != nil {
				return err
			}
			return provider.Alive(ctx, *shop)
		})
	}

	// Build the service layer.
	policy, err := service.ParseDuplicateNumberPolicy(cfg.DuplicateNumberPolicy)
	if err != nil {
		return nil, err
	}
	federator := service.NewFederator(provider, eng, catalog.Articles, policy, logger)
	reindexer := service.NewReindexer(catalog.Articles, catalog.Categories, eng, membership, logger)
	orchestrator := export.NewOrchestrator(catalog, membership, export.Config{
		RefreshOnFirstPage: cfg.ExportRefreshOnFirstPage,
		Item: export.ItemConfig{
			HideNoInStock: cfg.HideNoInStock,
			MarkAsNewDays: cfg.MarkAsNewDays,
		},
	}, logger)

	// A fresh in-memory engine knows nothing until the catalog is indexed.
	if cfg.SearchEngine == config.BackendMemory {
		n, err := reindexer.Reindex(ctx)
		if err != nil {
			return nil, fmt.Errorf("initial reindex: %w", err)
		}
		logger.Info("in-memory search engine populated", slog.Int("count", n))
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Search: handler.NewSearchHandler(federator, reindexer, eng, catalog, handler.SearchOptions{
			Flags:          cfg.Flags(),
			DefaultShopKey: cfg.DefaultShopKey,
		}, logger),
		Export:             handler.NewExportHandler(orchestrator, logger),
		Health:             healthHandler,
		AdminToken:         cfg.AdminToken,
		ExportAllowedCIDRs: cfg.ExportAllowedCIDRs,
		PprofAllowedCIDRs:  cfg.PprofAllowedCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openCatalog connects the catalog repositories selected by CATALOG_STORE.
func (a *App) openCatalog(ctx context.Context, h *health.Handler) (repository.Catalog, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.CatalogStore == config.BackendMemory {
		c := memory.NewCatalog()
		if cfg.CatalogSeedFile != "" {
			f, err := os.Open(cfg.CatalogSeedFile)
			if err != nil {
				return repository.Catalog{}, fmt.Errorf("open catalog seed: %w", err)
			}
			defer f.Close()
			if err := c.Load(f); err != nil {
				return repository.Catalog{}, err
			}
		}
		logger.Info("in-memory catalog initialized", slog.String("seed", cfg.CatalogSeedFile))
		return repository.Catalog{Shops: c, CustomerGroups: c, Categories: c, Articles: c}, nil
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return repository.Catalog{}, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "finsearch")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return repository.Catalog{}, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	h.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	return repository.Catalog{
		Shops:          postgres.NewShopRepository(pool),
		CustomerGroups: postgres.NewCustomerGroupRepository(pool),
		Categories:     postgres.NewCategoryRepository(pool),
		Articles:       postgres.NewArticleRepository(pool),
	}, nil
}

// openEngine initializes the in-shop search engine selected by SEARCH_ENGINE.
func (a *App) openEngine(ctx context.Context, h *health.Handler) (searchBackend, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.SearchEngine == config.BackendMemory {
		logger.Info("in-memory search engine initialized")
		return enginememory.New(), nil
	}

	esEng, err := esengine.New(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch engine: %w", err)
	}
	logger.Info("elasticsearch search engine initialized",
		slog.String("url", cfg.ElasticsearchURL),
		slog.String("index", cfg.ElasticsearchIndex),
	)
	h.Register("elasticsearch", esEng.Ping)
	return esEng, nil
}

// openCacheStore connects the product stream cache selected by CACHE_STORE.
func (a *App) openCacheStore(ctx context.Context, h *health.Handler) (cache.Store, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.CacheStore == config.BackendMemory {
		logger.Info("in-memory product stream cache initialized")
		return cache.NewMemoryStore(), nil
	}

	rc := cfg.Redis()
	client, err := database.NewRedisClient(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	logger.Info("connected to Redis", slog.String("addr", rc.Addr()))

	// The cache degrades to resolving on every export page without Redis.
	h.RegisterOptional("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return cache.NewRedisStore(client), nil
}

// Run starts the HTTP server, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Redis client
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases the tracer and the storage connections.
func (a *App) close() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
