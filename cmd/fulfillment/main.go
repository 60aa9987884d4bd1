package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/DPOO-f-boada/go-fulfillment/internal/config"
	"github.com/DPOO-f-boada/go-fulfillment/internal/fulfillment"
	kafkax "github.com/DPOO-f-boada/go-fulfillment/internal/kafka"
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

	svc := &fulfillment.Service{
		Store: &orders.Repo{DB: db},
		Dedup: &redisx.Dedup{Client: rdb, Service: cfg.ServiceName + "-fulfillment"},
		Cache: rdb,
		Log:   log,
	}

	group := getenv("FULFILLMENT_GROUP", "fulfillment-svc")
	workers := mustAtoi(os.Getenv("FULFILLMENT_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicShipmentEvents, workers, log)

	go func() {
		log.Info("fulfillment consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicShipmentEvents),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleShipmentEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
