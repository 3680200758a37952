package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/cart"
	"github.com/sixstreet/storefront/internal/catalog"
	"github.com/sixstreet/storefront/internal/checkout"
	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/config"
	"github.com/sixstreet/storefront/internal/events"
	"github.com/sixstreet/storefront/internal/httpx"
	"github.com/sixstreet/storefront/internal/inventory"
	kafkax "github.com/sixstreet/storefront/internal/kafka"
	"github.com/sixstreet/storefront/internal/logging"
	"github.com/sixstreet/storefront/internal/postgres"
	"github.com/sixstreet/storefront/internal/redisx"
	"github.com/sixstreet/storefront/internal/session"
	"github.com/sixstreet/storefront/internal/shipping"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, checkout.LedgerSchema); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer untuk notice
	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicStorefrontEvents, 1024, logger)
	prod.Start(ctx)
	notifier := events.Multi{
		events.LogNotifier{Log: logger},
		&events.KafkaNotifier{Producer: prod, Service: cfg.ServiceName},
	}

	// Sessions
	codec, err := sessionCodec(cfg, logger)
	if err != nil {
		logger.Fatal("session codec", zap.Error(err))
	}
	sessions := session.NewResolver(session.RedisStorage{RDB: rdb}, codec, logger.Named("session"))

	// Upstreams
	backend := commerce.New(cfg.CommerceBaseURL, cfg.HTTPClientTimeout, logger.Named("commerce"))
	invClient := inventory.NewClient(cfg.InventoryBaseURL, cfg.InventoryEmail, cfg.InventoryPassword,
		cfg.HTTPClientTimeout, logger.Named("inventory"))
	inv := inventory.NewAdapter(invClient, inventory.RedisCache{RDB: rdb, Log: logger}, cfg.StockThreshold, logger.Named("inventory"))
	ship := &shipping.Resolver{
		Backend:     backend,
		Cache:       shipping.RedisCache{RDB: rdb},
		Origin:      cfg.ShippingOrigin,
		WeightGrams: cfg.ShippingWeightGrams,
		Timeout:     cfg.ShippingTimeout,
		Notifier:    notifier,
		Log:         logger.Named("shipping"),
	}

	// Domain
	carts := cart.NewRegistry(cart.Options{
		Backend:   backend,
		Meta:      inv,
		Notifier:  notifier,
		Log:       logger.Named("cart"),
		SyncDelay: cfg.CartSyncDelay,
	})
	svc := &checkout.Service{
		Backend:        backend,
		Shipping:       ship,
		Meta:           inv,
		Ledger:         &checkout.PgLedger{DB: db},
		Notifier:       notifier,
		Log:            logger.Named("checkout"),
		PaymentTimeout: cfg.PaymentTimeout,
	}
	cat := catalog.NewService(inv, logger.Named("catalog"))

	// Payment outcome consumer
	outcomes := &checkout.OutcomeConsumer{
		Service: svc,
		Dedup:   checkout.RedisDeduper{RDB: rdb, Service: cfg.ServiceName},
		Log:     logger.Named("outcome"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentOutcomeGroup, events.TopicPaymentOutcome,
		cfg.PaymentOutcomeWorkers, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		logger.Info("payment outcome consumer started",
			zap.String("group", cfg.PaymentOutcomeGroup), zap.Int("workers", cfg.PaymentOutcomeWorkers))
		if err := cons.Start(ctx, outcomes.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer exit", zap.Error(err))
		}
	}()

	router := httpx.NewRouter(&httpx.Auth{Sessions: sessions, Log: logger},
		[]httpx.Registrar{&httpx.ProductsHandler{Products: inv, Catalog: cat}},
		&httpx.CartHandler{Carts: carts},
		&httpx.OrdersHandler{Orders: backend, Shipping: ship},
		&httpx.CheckoutHandler{Checkout: svc},
	)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	carts.Close() // stop timer sync, tunggu prune yang masih jalan
	cancel()      // stop consumer & producer loop
	<-consumerDone
	prod.Close()
	prod.WaitClosed()
}

// sessionCodec seals with PASETO and still opens entries written by the
// legacy AES sessions when their passphrase is configured.
func sessionCodec(cfg config.Config, logger *zap.Logger) (session.Codec, error) {
	if cfg.SessionKeyHex == "" {
		logger.Warn("SESSION_KEY not set, using a random key: sessions die on restart and are not shared across replicas")
	}
	pc, err := session.NewPasetoCodec(cfg.SessionKeyHex)
	if err != nil {
		return nil, err
	}
	if cfg.LegacySessionSecret == "" {
		return pc, nil
	}
	return session.ChainCodec{pc, session.LegacyCodec{Passphrase: cfg.LegacySessionSecret}}, nil
}
