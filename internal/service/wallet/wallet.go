package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
)

// How many transactions wallet lookup returns
const RecentTransactions = 20

type Details struct {
	Wallet       models.Wallet
	Transactions []models.Transaction // most recent first
}

type Service struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  l.WithGroup("wallet"),
	}
}

// Create opens new empty wallet. Its id is the only credential to access it.
func (s *Service) Create(ctx context.Context) (models.Wallet, error) {
	wallet, err := s.storage.Wallet().CreateWallet(ctx)
	if err != nil {
		return wallet, err
	}

	s.logger.Info("Wallet created", "wallet_id", wallet.ID)
	return wallet, nil
}

func (s *Service) Get(ctx context.Context, walletID uuid.UUID) (Details, error) {
	var details Details

	wallet, err := s.storage.Wallet().GetWallet(ctx, walletID, false)
	if err != nil {
		return details, err
	}

	transactions, err := s.storage.Transaction().ListTransactions(ctx, walletID, RecentTransactions)
	if err != nil {
		return details, fmt.Errorf("list transactions: %w", err)
	}

	details.Wallet = wallet
	details.Transactions = transactions
	return details, nil
}
