package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/pixwallet/internal/db"
	"github.com/nkiryanov/pixwallet/internal/handlers"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/metrics"
	"github.com/nkiryanov/pixwallet/internal/repository/postgres"
	"github.com/nkiryanov/pixwallet/internal/service/callback"
	"github.com/nkiryanov/pixwallet/internal/service/deposit"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
	"github.com/nkiryanov/pixwallet/internal/service/outbox"
	"github.com/nkiryanov/pixwallet/internal/service/outbox/kafka"
	"github.com/nkiryanov/pixwallet/internal/service/wallet"
	"github.com/nkiryanov/pixwallet/internal/service/withdrawal"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	pool      *pgxpool.Pool
	relay     *outbox.Relay
	publisher outbox.Publisher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)
	m := metrics.New()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:      c.GatewayURL,
		ClientID:     c.GatewayClientID,
		ClientSecret: c.GatewayClientSecret,
		CallbackURL:  c.CallbackURL(),
		Timeout:      c.GatewayTimeout,
	}, logger, m)

	// Initialize services
	policy := c.FeePolicy()
	walletService := wallet.NewService(storage, logger)
	depositService := deposit.NewService(storage, gw, policy, logger, m)
	withdrawalService := withdrawal.NewService(storage, gw, policy, withdrawal.Config{
		MinAmount:   c.WithdrawalMinAmount,
		HourlyLimit: c.WithdrawalHourlyLimit,
		Window:      withdrawal.DefaultWindow,
	}, logger, m)
	reconciler := callback.NewReconciler(storage, logger, m)

	var publisher outbox.Publisher = outbox.NewLogPublisher(logger)
	if len(c.KafkaBrokers) > 0 {
		publisher, err = kafka.NewPublisher(kafka.Config{Brokers: c.KafkaBrokers, Topic: c.KafkaTopic}, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("error while creating kafka publisher. Err: %w", err)
		}
	}
	relay := outbox.NewRelay(storage.Event(), publisher, c.OutboxInterval, logger, m)

	router := handlers.NewRouter(handlers.Services{
		Wallets:     walletService,
		Deposits:    depositService,
		Withdrawals: withdrawalService,
		Reconciler:  reconciler,
		Verifier:    gw,
		Health:      pool,
		Metrics:     m,
	}, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     logger,
		pool:       pool,
		relay:      relay,
		publisher:  publisher,
	}, nil
}

// Run starts http server and outbox relay, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	relayStopped := s.relay.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-relayStopped

	if closeErr := s.publisher.Close(); closeErr != nil {
		s.logger.Warn("Ledger events publisher close failed", "error", closeErr)
	}
	s.pool.Close()

	return err
}
