package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-storefront/internal/analytics"
	analytics_api "ms-storefront/internal/analytics/api"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/booking"
	"ms-storefront/internal/booking/booking_api"
	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/notify"
	"ms-storefront/internal/order"
	"ms-storefront/internal/order/order_api"
	"ms-storefront/internal/payment"
	"ms-storefront/internal/pricing"
	"ms-storefront/internal/promo"
	"ms-storefront/internal/promo/promo_api"
	"ms-storefront/internal/ratelimit"
	"ms-storefront/internal/reference"
	"ms-storefront/internal/scheduler"
	"ms-storefront/internal/server"
	"ms-storefront/internal/store"
	"ms-storefront/internal/tickets"
	"ms-storefront/internal/tickets/ticket_api"
	"ms-storefront/internal/webhook"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(logger.Options{
		Dir:      cfg.Log.Dir,
		MinLevel: logger.ParseLevel(cfg.Log.Level),
		NoColor:  cfg.Log.NoColor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting storefront service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		// not closed: closing the driver would close the shared *sql.DB
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := newPublisher(ctx, cfg.Kafka, log)
	if c, ok := publisher.(*kafka.Producer); ok {
		defer c.Close()
	}

	st := store.New(bunDB)
	refs := reference.New()
	checkout := payment.NewCheckoutClient(cfg.Gateway, &http.Client{Timeout: cfg.Gateway.Timeout}, log)
	if err := checkout.Configured(); err != nil {
		log.Warn("PAYMENT", err.Error()+"; checkout creation will answer 503")
	}
	if !cfg.Email.Configured() {
		log.Warn("EMAIL", "No email transport configured; confirmations will report a configuration failure")
	}
	dispatcher := notify.NewDispatcher(notify.NewTransport(cfg.Email), cfg.Email, cfg.Storefront.SupportEmail, log)

	sweeper := &scheduler.Sweeper{
		Queue:  newQueue(redisClient, cfg.Scheduler.QueueKey),
		Finder: st,
		Delay:  cfg.Scheduler.ProcessingDelay,
		Batch:  cfg.Scheduler.BatchSize,
		Logger: log,
	}
	lifecycle := order.NewLifecycle(st, publisher, sweeper, log)
	sweeper.Advancer = lifecycle

	evaluator := promo.NewEvaluator(st, log)
	orderService := order.NewService(order.Deps{
		Store:     st,
		Promos:    st,
		Evaluator: evaluator,
		Pricing: pricing.NewCalculator(map[models.DeliveryMethod]int64{
			models.DeliveryPaxi:       cfg.Storefront.PaxiFee,
			models.DeliveryDoorToDoor: cfg.Storefront.DoorToDoorFee,
		}),
		Checkout:   checkout,
		Lifecycle:  lifecycle,
		Notifier:   dispatcher,
		Publisher:  publisher,
		Refs:       refs,
		Storefront: cfg.Storefront,
		Logger:     log,
	})
	ticketService := tickets.NewTicketService(tickets.Deps{
		Store:      st,
		Checkout:   checkout,
		Notifier:   dispatcher,
		Publisher:  publisher,
		Refs:       refs,
		Storefront: cfg.Storefront,
		Logger:     log,
	})

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Warn("AUTH", fmt.Sprintf("Admin routes disabled: %v", err))
		verifier = nil
	}

	var limiter *ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient, "promo-verify", cfg.RateLimit.PromoVerifyPerMinute, log)
	}

	summaries := analytics.NewService(st)
	var analyticsHandler *analytics_api.Handler
	if redisClient != nil {
		analyticsHandler = analytics_api.NewHandlerWithRedis(summaries, log, redisClient)
	} else {
		analyticsHandler = analytics_api.NewHandler(summaries, log)
	}

	health := &server.Health{
		Database: st,
		Kafka:    cfg.Kafka.Enabled,
		Checks: map[string]func() error{
			"payment_gateway": checkout.Configured,
			"email": func() error {
				if !cfg.Email.Configured() {
					return fmt.Errorf("email not configured")
				}
				return nil
			},
		},
	}
	if redisClient != nil {
		health.Redis = server.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	log.Info("HTTP", "Setting up router and middleware")
	router := server.NewRouter(server.Handlers{
		Orders:    order_api.NewHandler(orderService, evaluator, log),
		Tickets:   ticket_api.NewHandler(ticketService, log),
		Bookings:  booking_api.NewHandler(booking.NewService(st, refs, log), log),
		Promos:    promo_api.NewHandler(promo.NewAdmin(st, log), log),
		Analytics: analyticsHandler,
		Webhook: webhook.NewHandler(webhook.Deps{
			Records: st,
			Orders:  lifecycle,
			Tickets: ticketService,
			Secret:  cfg.Gateway.WebhookSecret,
			Logger:  log,
		}),
		Health:         health,
		PromoLimiter:   limiter,
		Verifier:       verifier,
		AdminRole:      cfg.Auth.AdminRole,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx, cfg.Scheduler.SweepInterval)
	}()

	go func() {
		log.Info("HTTP", fmt.Sprintf("Storefront service running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	stopSweep()
	select {
	case <-sweepDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("SCHEDULER", "Sweeper did not stop in time")
	}
	log.Info("APP", "Storefront service shutdown complete")
}

// newPublisher returns a kafka producer when enabled, otherwise a no-op publisher.
func newPublisher(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) kafka.Publisher {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, lifecycle events will not be published")
		return kafka.Nop{}
	}
	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, kafka.TopicNames(cfg.Topics), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	log.Info("KAFKA", "Kafka producer initialized")
	return kafka.NewProducer(cfg.Brokers, cfg.Topics, log)
}

func newQueue(client *redis.Client, key string) scheduler.Queue {
	if client == nil {
		return scheduler.NewMemoryQueue()
	}
	return scheduler.NewRedisQueue(client, key)
}
