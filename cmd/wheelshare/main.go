package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	bookingapp "wheelshare/internal/app/booking"
	"wheelshare/internal/app/dispatch"
	appoutbox "wheelshare/internal/app/outbox"
	paymentapp "wheelshare/internal/app/payment"
	"wheelshare/internal/app/policies"
	"wheelshare/internal/app/uow"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/infra/broker/kafka"
	"wheelshare/internal/infra/config"
	"wheelshare/internal/infra/db/mongo"
	ginserver "wheelshare/internal/infra/http/gin"
	"wheelshare/internal/infra/obs"
	infraoutbox "wheelshare/internal/infra/outbox"
	"wheelshare/internal/infra/providers/payfast"
	"wheelshare/internal/infra/providers/stripecard"
	"wheelshare/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, "wheelshare-api")

	app, cleanup, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	if cfg.VehicleFixtures != "" {
		if err := loadVehicleFixtures(cfg.VehicleFixtures, app.catalog, logger); err != nil {
			logger.Warn("vehicle fixtures load failed", "error", err, "path", cfg.VehicleFixtures)
		}
	}

	go func() {
		if err := app.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	worker   *infraoutbox.Worker
	catalog  *memory.VehicleCatalog
	ready    func() error
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Vehicle listings live in a separate service; the catalog port is backed
	// in-process for now and seeded from fixtures.
	catalog := memory.NewVehicleCatalog()
	sink := memory.NewNotificationSink(logger)

	var (
		factory   uow.UoWFactory
		box       appoutbox.Outbox
		store     infraoutbox.Store
		ready     = func() error { return nil }
	)
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			cleanup()
			return application{}, nil, fmt.Errorf("mongo connect: %w", err)
		}
		cleanups = append(cleanups, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(closeCtx)
		})
		factory = mongo.Factory{
			DB:          client.DB,
			BookingRepo: mongo.NewBookingRepository(client.DB),
			PaymentRepo: mongo.NewPaymentRepository(client.DB),
		}
		mongoStore := infraoutbox.NewMongoStore(client.DB)
		box, store = mongoStore, mongoStore
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
	default:
		memOutbox := memory.NewOutbox()
		factory = memory.Factory{
			BookingRepo: memory.NewBookingRepository(),
			PaymentRepo: memory.NewPaymentRepository(),
		}
		box, store = memOutbox, memOutbox
	}

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		cleanup()
		return application{}, nil, err
	}

	bookingSvc := bookingapp.NewService(factory, catalog, box)
	paymentSvc := paymentapp.NewService(factory, providers, box, cfg.ProviderTimeout)

	var producer infraoutbox.Producer
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			cleanup()
			return application{}, nil, fmt.Errorf("kafka connect: %w", err)
		}
		cleanups = append(cleanups, func() { _ = kp.Close() })
		producer = kp
	} else {
		logger.Warn("no kafka brokers configured, events are logged only")
		producer = logProducer{logger: logger}
	}

	worker := &infraoutbox.Worker{
		Store:       store,
		Producer:    producer,
		Dispatcher:  &dispatch.Dispatcher{Sink: sink, Logger: logger},
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}

	verifier := ginserver.NewStaticTokenVerifier(parseDevTokens(os.Getenv("DEV_TOKENS")))
	authMW := ginserver.AuthMiddleware{Verifier: verifier, Logger: logger}

	return application{
		handlers: ginserver.Handlers{
			Booking:        ginserver.BookingHandler{Service: bookingSvc},
			Payment:        ginserver.PaymentHandler{Service: paymentSvc},
			Me:             ginserver.MeHandler{Bookings: bookingSvc},
			HostBooking:    ginserver.HostBookingHandler{Bookings: bookingSvc},
			AuthMiddleware: authMW.Handle,
		},
		worker:  worker,
		catalog: catalog,
		ready:   ready,
	}, cleanup, nil
}

func buildProviders(cfg config.Config, logger *slog.Logger) (map[domainpayment.Provider]policies.PaymentProvider, error) {
	providers := make(map[domainpayment.Provider]policies.PaymentProvider)
	if cfg.StripeSecretKey != "" {
		card, err := stripecard.New(cfg.StripeSecretKey)
		if err != nil {
			return nil, err
		}
		providers[domainpayment.ProviderCard] = card
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, card provider disabled")
	}
	if cfg.PayFast.MerchantID != "" {
		providers[domainpayment.ProviderRedirect] = payfast.New(cfg.PayFast, logger)
	} else {
		logger.Warn("PAYFAST_MERCHANT_ID not set, redirect provider disabled")
	}
	return providers, nil
}

// parseDevTokens reads "token=userID[+role...]" pairs separated by commas,
// e.g. "t1=alice,t2=bob+admin".
func parseDevTokens(raw string) map[string]ginserver.Principal {
	tokens := make(map[string]ginserver.Principal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, subject, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		parts := strings.Split(subject, "+")
		p := ginserver.Principal{ID: parts[0]}
		if len(parts) > 1 {
			p.Roles = parts[1:]
		}
		tokens[token] = p
	}
	return tokens
}

type vehicleFixture struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Bookable bool   `json:"bookable"`
}

func loadVehicleFixtures(path string, catalog *memory.VehicleCatalog, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("vehicle fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []vehicleFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		if fx.ID == "" || fx.OwnerID == "" {
			logger.Error("fixture invalid", "vehicle_id", fx.ID)
			continue
		}
		catalog.Put(memory.Vehicle{ID: fx.ID, OwnerID: fx.OwnerID, Bookable: fx.Bookable})
		logger.Info("vehicle fixture imported", "vehicle_id", fx.ID)
	}
	return nil
}

// logProducer stands in for the broker in single-process setups.
type logProducer struct {
	logger *slog.Logger
}

func (p logProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.logger.Info("event", "topic", topic, "key", key, "size", len(payload))
	return nil
}
