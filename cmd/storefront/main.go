package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/era_store/internal/anomaly"
	"github.com/fjod/era_store/internal/cart"
	"github.com/fjod/era_store/internal/cart/cache"
	cartrepo "github.com/fjod/era_store/internal/cart/repository"
	"github.com/fjod/era_store/internal/catalog"
	"github.com/fjod/era_store/internal/config"
	apihttp "github.com/fjod/era_store/internal/http"
	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/profile"
	"github.com/fjod/era_store/internal/publisher"
	"github.com/fjod/era_store/internal/reconcile"
	"github.com/fjod/era_store/internal/repository"
	"github.com/fjod/era_store/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "era-storefront"

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", serviceName).Logger()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	logger.Info().Msg("storefront starting...")

	ctx := context.Background()
	var wg sync.WaitGroup

	// Orders, outbox and profiles
	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		SSLMode:           "disable",
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Msg("database migrations completed")

	ledger := profile.NewLedger(repo.DB())

	// Catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open catalog")
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run catalog migrations")
	}

	// Cart storage
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}()
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := cartrepo.EnsureIndexes(ctx, carts); err != nil {
		logger.Fatal().Err(err).Msg("failed to create cart indexes")
	}
	logger.Info().Str("uri", cfg.MongoURI).Msg("connected to MongoDB")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	cartStorage := cart.NewCachedStorage(carts, cache.NewRedisCache(redisClient), logger)

	// Payment provider
	stripeProvider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.ProviderTimeout,
	})
	provider := payment.NewBreakerProvider(stripeProvider, payment.DefaultBreakerSettings(), logger)
	verifier := payment.NewVerifier(cfg.StripeWebhookSecret)
	if cfg.StripeWebhookSecret == "" {
		logger.Warn().Msg("STRIPE_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	// Anomalies
	anomalyWriter := anomaly.NewKafkaWriter(logger, cfg.Brokers()...)
	defer anomalyWriter.Close()
	reporter, err := anomaly.NewReporter(logger, anomalyWriter)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create anomaly reporter")
	}

	checkout := service.NewCheckoutService(repo, provider, ledger, verifier, reporter, service.Config{
		Currency:        cfg.Currency,
		OrderPrefix:     cfg.OrderPrefix,
		SuccessURL:      cfg.SuccessURL(),
		CancelURL:       cfg.CancelURL(),
		ProviderTimeout: cfg.ProviderTimeout,
	}, logger)

	// Background loops
	bgCtx, bgCancel := context.WithCancel(ctx)

	outboxWriter := publisher.NewKafkaWriter(cfg.Brokers()...)
	defer outboxWriter.Close()
	poller := publisher.NewOutboxPoller(repo, outboxWriter, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(bgCtx)
	}()

	sweeper := reconcile.NewSweeper(repo, provider, checkout, reporter, reconcile.Config{
		Interval:   cfg.ReconcileInterval,
		PendingAge: cfg.ReconcilePendingAge,
	}, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(bgCtx)
	}()

	// gRPC health
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen")
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		logger.Info().Str("port", cfg.GRPCPort).Msg("health service listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("failed to serve gRPC")
		}
	}()

	// HTTP
	router := apihttp.NewRouter(apihttp.Handlers{
		Checkout:  apihttp.NewCheckoutHandler(checkout, cartStorage, logger, cfg.RequestTimeout),
		Webhook:   apihttp.NewWebhookHandler(checkout, logger, cfg.RequestTimeout),
		Orders:    apihttp.NewOrdersHandler(checkout, logger, cfg.RequestTimeout),
		Cart:      apihttp.NewCartHandler(cartStorage, products, logger, cfg.RequestTimeout),
		Products:  apihttp.NewProductHandler(products, logger, cfg.RequestTimeout),
		Customers: apihttp.NewCustomerHandler(checkout, logger, cfg.RequestTimeout),
	}, logger, apihttp.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down storefront...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	grpcServer.GracefulStop()
	bgCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logger.Info().Msg("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("background workers didn't stop in time")
	}

	logger.Info().Msg("storefront stopped")
}
