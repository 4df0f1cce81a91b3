package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/models"
)

// Storage gives access to all repositories
// Repositories returned by the storage passed to InTx share one database transaction
type Storage interface {
	Wallet() WalletRepo
	Transaction() TransactionRepo
	Event() EventRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type WalletRepo interface {
	// Create wallet with zero balance
	CreateWallet(ctx context.Context) (models.Wallet, error)

	// Get wallet by id
	// If lock is true the wallet row is locked until the end of the transaction
	// Must return apperrors.ErrWalletNotFound if wallet not exists
	GetWallet(ctx context.Context, walletID uuid.UUID, lock bool) (models.Wallet, error)

	// Add signed delta to wallet balance in one statement
	// Must return apperrors.ErrInsufficientBalance if balance would become negative
	// Must return apperrors.ErrWalletNotFound if wallet not exists
	UpdateBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (models.Wallet, error)
}

type TransactionRepo interface {
	// Must return apperrors.ErrWalletNotFound if the wallet not exists
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// Must return apperrors.ErrTransactionNotFound if transaction not exists
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error)

	// Find transaction by id assigned by payment gateway
	// If lock is true the row is locked until the end of the transaction
	// Must return apperrors.ErrTransactionNotFound if transaction not exists
	GetTransactionByGatewayID(ctx context.Context, gatewayID string, lock bool) (models.Transaction, error)

	SetGatewayID(ctx context.Context, transactionID uuid.UUID, gatewayID string) (models.Transaction, error)

	// Move pending transaction to the status
	// Must return apperrors.ErrTransactionNotPending if transaction is terminal already
	SetStatus(ctx context.Context, transactionID uuid.UUID, status string) (models.Transaction, error)

	// Sum of CASH_OUT amounts created since the time, FAILED ones excluded
	SumWithdrawals(ctx context.Context, walletID uuid.UUID, since time.Time) (decimal.Decimal, error)

	// Most recent transactions first
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error)
}

type EventRepo interface {
	CreateEvent(ctx context.Context, e models.LedgerEvent) (models.LedgerEvent, error)

	// Oldest unpublished events first
	ListUnpublished(ctx context.Context, limit int) ([]models.LedgerEvent, error)

	MarkPublished(ctx context.Context, eventID int64, at time.Time) error
}
