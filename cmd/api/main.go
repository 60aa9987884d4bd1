package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DPOO-f-boada/go-fulfillment/internal/allocator"
	"github.com/DPOO-f-boada/go-fulfillment/internal/catalog"
	"github.com/DPOO-f-boada/go-fulfillment/internal/config"
	"github.com/DPOO-f-boada/go-fulfillment/internal/directory"
	"github.com/DPOO-f-boada/go-fulfillment/internal/httpx"
	kafkax "github.com/DPOO-f-boada/go-fulfillment/internal/kafka"
	"github.com/DPOO-f-boada/go-fulfillment/internal/ledger"
	"github.com/DPOO-f-boada/go-fulfillment/internal/orders"
	"github.com/DPOO-f-boada/go-fulfillment/internal/postgres"
	"github.com/DPOO-f-boada/go-fulfillment/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	pConfirmed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmed, 1024, log)
	pConfirmed.Start(ctx)
	pRejected := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderRejected, 1024, log)
	pRejected.Start(ctx)

	// Collaborators and core
	led := &ledger.PG{DB: db}
	dir := &directory.PG{DB: db}
	store := &orders.Repo{DB: db}
	cat := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.MetadataTimeout)

	coord := &orders.Coordinator{
		Catalog:           cat,
		Directory:         dir,
		Ledger:            led,
		Allocator:         &allocator.Allocator{Ledger: led, Directory: dir},
		Store:             store,
		Retry:             orders.DefaultRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff),
		Log:               log,
		ProducerConfirmed: pConfirmed,
		ProducerRejected:  pRejected,
		ServiceName:       cfg.ServiceName,
		MetadataTimeout:   cfg.MetadataTimeout,
		ReserveTimeout:    cfg.ReserveTimeout,
		PlacementSLA:      cfg.PlacementSLA,
	}

	// Reconciliation sweep for orders stranded in PENDING
	sweeper := &orders.Sweeper{
		Store:    store,
		Interval: cfg.SweepInterval,
		MaxAge:   cfg.PendingMaxAge,
		Log:      log,
	}
	go sweeper.Run(ctx)

	// HTTP
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Coordinator: coord, Store: store, Redis: rdb, Log: log}
	oh.Register(router)
	ih := &httpx.InventoryHandler{Catalog: cat, Ledger: led, Directory: dir}
	ih.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pConfirmed.Close() // close inbox -> flush & close writer
	pRejected.Close()
	cancel() // stop producer loops and sweeper
	pConfirmed.WaitClosed()
	pRejected.WaitClosed()
}
