package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_checkout/internal/cart"
	"github.com/fjod/go_checkout/internal/checkout"
	"github.com/fjod/go_checkout/internal/config"
	"github.com/fjod/go_checkout/internal/guard"
	h "github.com/fjod/go_checkout/internal/http"
	"github.com/fjod/go_checkout/internal/orders"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/poll"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/internal/processor"
	"github.com/fjod/go_checkout/internal/publisher"
	"github.com/fjod/go_checkout/internal/recurring"
	"github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	serviceName     = "checkout"
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	healthTick      = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("checkout stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})
	log.Info("checkout starting", slog.String("http_port", cfg.HTTPPort), slog.String("grpc_port", cfg.GRPCPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// Postgres: checkout sessions and the outbox
	creds := cfg.Credentials()
	repo, err := repository.NewRepository(ctx, creds)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")

	// MongoDB cart behind a Redis cache
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mongoDB.Client().Disconnect(dctx); err != nil {
			log.Error("mongodb disconnect failed", slog.Any("err", err))
		}
	}()

	cartRepo := cart.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	carts := cart.NewService(cartRepo, cart.NewRedisCache(redisClient, cfg.CartCacheTTL))

	// Storefront backend and payment processor
	store := storefront.NewClient(cfg.StorefrontBaseURL, cfg.StorefrontTimeout,
		storefront.WithBreaker(circuitbreaker.DefaultSettings("storefront"), log))
	stripe := processor.NewStripe(cfg.StripeSecretKey, nil)

	converter, err := cfg.Converter()
	if err != nil {
		return err
	}
	shippingDefaults, err := cfg.ShippingDefaults()
	if err != nil {
		return err
	}
	window, err := cfg.Window()
	if err != nil {
		return err
	}

	checkoutGuard := guard.New(guard.NewRedisStore(redisClient), cfg.GuardTTL)
	coordinator := payment.NewCoordinator(store, stripe, checkoutGuard, poll.Config{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
	})
	orderService := orders.NewService(store, carts)
	recurringClient := recurring.NewClient(store, stripe, window)

	checkoutService := checkout.NewService(checkout.Deps{
		Repo:      repo,
		Carts:     carts,
		Coupons:   store,
		Shipping:  pricing.NewShippingSource(store, cfg.ShippingCacheTTL, shippingDefaults),
		Calc:      pricing.NewCalculator(converter),
		Payments:  coordinator,
		Orders:    orderService,
		Recurring: recurringClient,
		Guard:     checkoutGuard,
		// a confirm older than the guard can no longer belong to a live request
		StuckAfter: cfg.GuardTTL + requestTimeout,
	})

	var recoverer publisher.Recoverer
	if cfg.StorefrontServiceToken != "" {
		recoverer = checkout.NewRecoverer(checkoutService, cfg.StorefrontServiceToken)
	} else {
		log.Warn("STOREFRONT_SERVICE_TOKEN is not set, interrupted checkouts will not be recovered")
	}

	pollerCfg := publisher.DefaultConfig()
	pollerCfg.RecoveryTick = cfg.RecoveryTick
	pollerCfg.IdleFor = cfg.RecoveryIdle
	pollerCfg.StuckFor = cfg.GuardTTL + requestTimeout
	pollerCfg.RecoveryTimeout = cfg.PollBudget() + 2*requestTimeout
	poller := publisher.NewOutboxPoller(pollerCfg, repo,
		publisher.NewKafkaWriter(cfg.OutboxTopic, cfg.Brokers()...), recoverer)
	cartCleaner := cart.NewCheckoutConsumer(carts, cfg.OutboxTopic, cfg.Brokers()...)

	// Polling can take PollInterval * PollMaxAttempts before the order is confirmed.
	payTimeout := cfg.PollBudget() + 2*requestTimeout

	router := h.NewRouter(log, h.Handlers{
		Cart:      h.NewCartHandler(carts, requestTimeout),
		Checkout:  h.NewCheckoutHandler(checkoutService, requestTimeout, payTimeout),
		Orders:    h.NewOrdersHandler(orderService, requestTimeout),
		Recurring: h.NewRecurringHandler(recurringClient, requestTimeout),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: payTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on grpc port: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc server listening", slog.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		return cartCleaner.Run(gctx)
	})

	g.Go(func() error {
		reportHealth(gctx, healthServer, repo)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("checkout stopped")
	return nil
}

// reportHealth serves NOT_SERVING while Postgres is unreachable.
func reportHealth(ctx context.Context, hs *health.Server, repo *repository.Repository) {
	ticker := time.NewTicker(healthTick)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		if err := repo.Ping(pctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.FromContext(ctx).Warn("database ping failed", slog.Any("err", err))
		}
		cancel()
		hs.SetServingStatus("", status)
		hs.SetServingStatus(serviceName, status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
