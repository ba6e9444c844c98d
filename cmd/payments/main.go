package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/api"
	"github.com/thejas/flightbook/config"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/bootstrap"
	"github.com/thejas/flightbook/internal/client"
	"github.com/thejas/flightbook/internal/kafka"
	"github.com/thejas/flightbook/internal/repository"
	"github.com/thejas/flightbook/internal/service/payment"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	bookingClient := client.NewBookingClient(cfg.Clients.BookingsBaseURL, cfg.Clients.Timeout(), cfg.Clients.Attempts())
	paymentRepo := repository.NewPaymentRepository(pool)
	paymentService := payment.NewPaymentService(
		paymentRepo,
		bookingClient,
		payment.NewSandboxGateway(),
		producer,
		cfg.Kafka.PaymentEventsTopic,
		log,
	)

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	engine, apiGroup := bootstrap.NewEngine(verifier)
	api.NewPaymentHandler(paymentService).Register(apiGroup.Group("/payments"))

	if err := bootstrap.Run(ctx, cfg.Payments.Address, engine, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
