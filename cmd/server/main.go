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

	"github.com/fjod/go_marketplace/internal/auth"
	"github.com/fjod/go_marketplace/internal/cache"
	"github.com/fjod/go_marketplace/internal/config"
	"github.com/fjod/go_marketplace/internal/consumer"
	h "github.com/fjod/go_marketplace/internal/http"
	"github.com/fjod/go_marketplace/internal/logger"
	"github.com/fjod/go_marketplace/internal/mail"
	"github.com/fjod/go_marketplace/internal/payment"
	"github.com/fjod/go_marketplace/internal/publisher"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/fjod/go_marketplace/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, "marketplace")
	log.Info().Msg("marketplace starting...")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("marketplace stopped with error")
	}
	log.Info().Msg("marketplace stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	var wg sync.WaitGroup

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("database migrations completed")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cartCache := cache.NewRedisCache(redisClient)

	tokens, err := auth.NewPasetoMaker(cfg.TokenKey)
	if err != nil {
		return fmt.Errorf("create token maker: %w", err)
	}

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewBreakerGateway(
			payment.NewStripeGateway(cfg.StripeSecretKey),
			payment.DefaultBreakerSettings(cfg.PaymentTimeout),
		)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY is not set, payments are disabled")
	}

	mailer := mail.NewMailer(mail.NewSMTPSender(cfg.MailFrom, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword))

	// Services
	carts := service.NewCartService(repo, cartCache, log)
	orders := service.NewOrderService(repo, carts, log)
	payments := service.NewPaymentService(repo, repo, repo, orders, gateway, service.PaymentConfig{
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
	}, log)
	catalog := service.NewCatalogService(repo, log)
	stores := service.NewStoreService(repo, repo, log)
	users := service.NewUserService(repo, tokens, mailer, service.UserConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		TokenDuration: cfg.TokenDuration,
	}, log)

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(carts, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(orders, payments, cfg.RequestTimeout),
		Products: h.NewProductHandler(catalog, cfg.RequestTimeout),
		Stores:   h.NewStoreHandler(stores, cfg.RequestTimeout),
		Users:    h.NewUserHandler(users, cfg.RequestTimeout),
	}, h.RouterConfig{
		Tokens:         tokens,
		Principals:     users,
		Health:         repo,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})

	// Background workers
	workersCtx, workersCancel := context.WithCancel(context.Background())
	defer workersCancel()

	poller := publisher.NewOutboxPoller(repo, log, cfg.Brokers()...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(workersCtx)
	}()

	notifications := consumer.NewConsumer(repo, repo, mailer, log, cfg.Brokers()...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		notifications.Run(workersCtx)
	}()

	// gRPC health endpoint for orchestrators
	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return fmt.Errorf("listen on grpc health port: %w", err)
	}
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		log.Info().Str("port", cfg.GRPCHealthPort).Msg("grpc health listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc health server failed")
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("http server failed")
	}

	log.Info().Msg("shutting down...")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}
	grpcServer.GracefulStop()
	workersCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info().Msg("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn().Msg("background workers didn't stop in time")
	}

	notifications.Close()
	return runErr
}
