package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/api"
	"github.com/thejas/flightbook/config"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/bootstrap"
	"github.com/thejas/flightbook/internal/cache"
	"github.com/thejas/flightbook/internal/repository"
	"github.com/thejas/flightbook/internal/service/flights"
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
	flightService := flights.NewFlightService(flightRepo, redisCache, log)

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	engine, apiGroup := bootstrap.NewEngine(verifier)
	api.NewFlightHandler(flightService).Register(apiGroup.Group("/flights"))

	if err := bootstrap.Run(ctx, cfg.Flights.Address, engine, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
