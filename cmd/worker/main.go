package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/config"
	"github.com/thejas/flightbook/internal/cache"
	"github.com/thejas/flightbook/internal/kafka"
	"github.com/thejas/flightbook/internal/repository"
	"github.com/thejas/flightbook/internal/service/reconcile"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis,
		time.Duration(cfg.Cache.FlightsTTLSeconds)*time.Second,
		time.Duration(cfg.Cache.DedupeTTLMinutes)*time.Minute)

	flightRepo := repository.NewFlightRepository(pool)
	reconciler := reconcile.NewReconciler(flightRepo, redisCache, cfg.Worker.ReleaseMaxAttempts, log)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ReconciliationTopic, log)
	defer consumer.Close()

	log.Info("reconciliation worker started")

	if err := consumer.Consume(ctx, reconciler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("consumer stopped")
	}
}
