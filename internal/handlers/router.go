package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/handlers/middleware"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/metrics"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/service/callback"
	"github.com/nkiryanov/pixwallet/internal/service/deposit"
	"github.com/nkiryanov/pixwallet/internal/service/wallet"
	"github.com/nkiryanov/pixwallet/internal/service/withdrawal"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Wallets     walletService
	Deposits    depositService
	Withdrawals withdrawalService
	Reconciler  callbackReconciler
	Verifier    callbackVerifier
	Health      pinger
	Metrics     *metrics.Metrics
}

func NewRouter(s Services, logger logger.Logger) http.Handler {
	withSignature := middleware.SignatureMiddleware(s.Verifier, logger)

	mux := http.NewServeMux()

	mux.Handle("POST /api/wallet/create", handleCreateWallet(s.Wallets, logger))
	mux.Handle("GET /api/wallet/{id}", handleGetWallet(s.Wallets, logger))
	mux.Handle("POST /api/pix/generate", handleDeposit(s.Deposits, logger))
	mux.Handle("POST /api/withdraw", handleWithdraw(s.Withdrawals, logger))
	mux.Handle("POST /api/webhook/suitpay", withSignature(handleCallback(s.Reconciler, logger)))

	mux.Handle("GET /healthz", handleHealth(s.Health, logger))
	mux.Handle("GET /metrics", s.Metrics.Handler())

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(s.Metrics),
	)

	return handler
}

type walletService interface {
	// Create empty wallet
	Create(ctx context.Context) (models.Wallet, error)

	// Get wallet with its recent transactions
	// Has to return apperrors.ErrWalletNotFound if wallet not exists
	Get(ctx context.Context, walletID uuid.UUID) (wallet.Details, error)
}

type depositService interface {
	Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (deposit.Result, error)
}

type withdrawalService interface {
	Withdraw(ctx context.Context, req withdrawal.Request) (withdrawal.Result, error)
}

type callbackReconciler interface {
	Reconcile(ctx context.Context, n callback.Notification) (callback.Outcome, error)
}

type callbackVerifier interface {
	VerifyCallback(raw []byte) bool
}

type pinger interface {
	Ping(ctx context.Context) error
}
