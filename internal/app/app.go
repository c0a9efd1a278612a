package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/GabrijelGordic/Suzeraj/internal/client"
	"github.com/GabrijelGordic/Suzeraj/internal/config"
	esengine "github.com/GabrijelGordic/Suzeraj/internal/engine/elasticsearch"
	"github.com/GabrijelGordic/Suzeraj/internal/event"
	handler "github.com/GabrijelGordic/Suzeraj/internal/handler/http"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/internal/repository/memory"
	"github.com/GabrijelGordic/Suzeraj/internal/repository/postgres"
	redisrepo "github.com/GabrijelGordic/Suzeraj/internal/repository/redis"
	"github.com/GabrijelGordic/Suzeraj/internal/service"
	"github.com/GabrijelGordic/Suzeraj/migrations"
	"github.com/GabrijelGordic/Suzeraj/pkg/database"
	"github.com/GabrijelGordic/Suzeraj/pkg/health"
	"github.com/GabrijelGordic/Suzeraj/pkg/httpclient"
	pkgkafka "github.com/GabrijelGordic/Suzeraj/pkg/kafka"
	"github.com/GabrijelGordic/Suzeraj/pkg/middleware"
	"github.com/GabrijelGordic/Suzeraj/pkg/tracing"
)

const (
	serviceName    = "market"
	serviceVersion = "0.1.0"

	// idempotencyTTL is how long consumed event ids are remembered.
	idempotencyTTL = 24 * time.Hour
)

// stores groups the repositories selected by configuration.
type stores struct {
	listings repository.ListingRepository
	reviews  repository.ReviewRepository
	wishlist repository.WishlistRepository
	profiles repository.ProfileRepository
}

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	rebuild        func(ctx context.Context)
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName, serviceVersion))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler(5 * time.Second)

	st, err := a.openStores(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Domain events leave the process through Kafka when it is enabled.
	// Without Kafka, listing events are dispatched in-process so that an
	// Elasticsearch index still follows the store.
	var publisher event.Publisher
	var dispatcher *event.Dispatcher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else if cfg.SearchBackend == config.BackendElasticsearch {
		dispatcher = event.NewDispatcher()
		publisher = dispatcher
	}
	producer := event.NewProducer(publisher, logger)

	// Search index.
	var searcher repository.ListingSearcher
	if cfg.SearchBackend == config.BackendElasticsearch {
		engine, err := esengine.New(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		searcher = engine
		healthHandler.RegisterNonCritical("elasticsearch", engine.Ping)
		logger.Info("elasticsearch search index initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)

		indexer := event.NewIndexer(st.listings, engine, logger)
		if dispatcher != nil {
			dispatcher.Subscribe(indexer.Handle, event.ListingTopics...)
		} else {
			a.consumers = a.newIndexConsumers(indexer.Handle)
		}

		a.rebuild = func(ctx context.Context) {
			n, err := event.Rebuild(ctx, st.listings, engine, logger)
			if err != nil {
				logger.Error("search index rebuild failed",
					slog.Int("indexed", n),
					slog.String("error", err.Error()),
				)
				return
			}
			logger.Info("search index rebuilt", slog.Int("indexed", n))
		}
	}

	// External user service for public profiles.
	var directory service.ProfileDirectory
	if cfg.UserServiceURL != "" {
		cb := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("user-service"),
			logger,
		)
		directory = client.NewUserClient(cb, cfg.UserServiceURL, logger)
		logger.Info("user service client initialized", slog.String("url", cfg.UserServiceURL))
	}

	// Build the service layer.
	svcs := handler.Services{
		Catalog: service.NewCatalogService(service.CatalogDeps{
			Listings: st.listings,
			Searcher: searcher,
			Reviews:  st.reviews,
			Wishlist: st.wishlist,
			Profiles: st.profiles,
			Producer: producer,
		}, cfg.ViewCountTimeout(), logger),
		Reputation: service.NewReputationService(st.reviews, st.profiles, producer, logger),
		Wishlist:   service.NewWishlistService(st.wishlist, st.listings, producer, logger),
		Profiles:   service.NewProfileService(st.profiles, st.reviews, directory, logger),
	}

	// HTTP router.
	router := handler.NewRouter(svcs, healthHandler, logger, handler.RouterConfig{
		CORS:           middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins...),
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: cfg.RequestTimeout,
		WriteRateLimit: middleware.RateLimitConfig{
			RPS:   cfg.WriteRateLimitRPS,
			Burst: cfg.WriteRateLimitBurst,
		},
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStores connects the configured backends and builds the repositories.
func (a *App) openStores(ctx context.Context, healthHandler *health.Handler) (*stores, error) {
	cfg, logger := a.cfg, a.logger
	var st stores

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		if t := cfg.SlowQueryThreshold(); t > 0 {
			database.SetSlowQueryLogging(t, logger)
		}

		st = stores{
			listings: postgres.NewListingRepository(pool),
			reviews:  postgres.NewReviewRepository(pool),
			wishlist: postgres.NewWishlistRepository(pool),
			profiles: postgres.NewProfileRepository(pool),
		}
		healthHandler.RegisterCritical("postgres", pool.Ping)
	default:
		st = stores{
			listings: memory.NewListingRepository(),
			reviews:  memory.NewReviewRepository(),
			wishlist: memory.NewWishlistRepository(),
			profiles: memory.NewProfileRepository(),
		}
		logger.Warn("using in-memory stores; data is lost on restart")
	}

	if cfg.UsesRedis() {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis(), serviceName)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = rdb
		healthHandler.RegisterCritical("redis", database.RedisChecker(rdb))
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}
	if cfg.WishlistBackend == config.BackendRedis {
		st.wishlist = redisrepo.NewWishlistRepository(a.redis)
	}

	return &st, nil
}

// newIndexConsumers subscribes handle to every listing topic. Redeliveries
// are filtered through Redis when it is connected.
func (a *App) newIndexConsumers(handle pkgkafka.Handler) []*pkgkafka.Consumer {
	var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, "market:indexer:", idempotencyTTL)
	}
	h := pkgkafka.IdempotentHandler(a.cfg.KafkaGroupID, store, handle, a.logger)

	consumers := make([]*pkgkafka.Consumer, 0, len(event.ListingTopics))
	for _, topic := range event.ListingTopics {
		consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  a.cfg.KafkaBrokers,
			GroupID:  a.cfg.KafkaGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}, h, a.logger))
	}
	a.logger.Info("kafka index consumers initialized",
		slog.Any("brokers", a.cfg.KafkaBrokers),
		slog.Int("topic_count", len(consumers)),
	)
	return consumers
}

// Run starts the HTTP server, the index rebuild and the Kafka consumers,
// blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	if a.rebuild != nil {
		go a.rebuild(ctx)
	}

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

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
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, Kafka
// consumers, tracer, Kafka producer, then the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases the producer and store connections that were
// opened, in reverse order of dependency.
func (a *App) closeResources() []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
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
	return errs
}
