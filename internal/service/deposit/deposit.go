package deposit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
	"github.com/nkiryanov/pixwallet/internal/service/fee"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
)

const description = "PIX deposit"

type Gateway interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal) (gateway.Charge, error)
}

type Observer interface {
	ObserveDeposit(err error)
}

type Result struct {
	TransactionID    uuid.UUID
	PaymentCode      string
	PaymentCodeImage string
	Amount           decimal.Decimal
	Fee              decimal.Decimal
	NetAmount        decimal.Decimal
}

// Service initiates deposits: it requests PIX charge and records pending CASH_IN transaction.
// Wallet balance is credited later, when the gateway confirms payment.
type Service struct {
	storage  repository.Storage
	gateway  Gateway
	policy   fee.Policy
	logger   logger.Logger
	observer Observer
}

func NewService(storage repository.Storage, gw Gateway, policy fee.Policy, l logger.Logger, observer Observer) *Service {
	return &Service{
		storage:  storage,
		gateway:  gw,
		policy:   policy,
		logger:   l.WithGroup("deposit"),
		observer: observer,
	}
}

func (s *Service) Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (res Result, err error) {
	defer func() {
		if s.observer != nil {
			s.observer.ObserveDeposit(err)
		}
	}()

	if err := fee.CheckAmount(amount); err != nil {
		return res, err
	}

	if _, err := s.storage.Wallet().GetWallet(ctx, walletID, false); err != nil {
		return res, err
	}

	breakdown, err := s.policy.Compute(amount, models.TransactionTypeCashIn)
	if err != nil {
		return res, err
	}

	charge, err := s.gateway.CreateCharge(ctx, amount)
	if err != nil {
		s.logger.Warn("Charge not created", "wallet_id", walletID, "amount", amount, "error", err)
		return res, &apperrors.GatewayError{Message: gateway.Reason(err), Err: err}
	}

	// Charge exists at the gateway now, record it even if the caller has gone
	ctx = context.WithoutCancel(ctx)

	var created models.Transaction
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		created, err = storage.Transaction().CreateTransaction(ctx, models.Transaction{
			WalletID:    walletID,
			Type:        models.TransactionTypeCashIn,
			Amount:      breakdown.Amount,
			Fee:         breakdown.Fee,
			NetAmount:   breakdown.NetAmount,
			Status:      models.TransactionStatusPending,
			GatewayID:   &charge.GatewayID,
			PixCode:     &charge.PaymentCode,
			Description: description,
		})
		if err != nil {
			return err
		}

		_, err = storage.Event().CreateEvent(ctx, models.NewLedgerEvent(models.EventTransactionCreated, created, decimal.Zero))
		return err
	})
	if err != nil {
		// Charge exists at the gateway but nothing references it, so its callback is ignored
		s.logger.Error("Failed to record deposit", "wallet_id", walletID, "gateway_id", charge.GatewayID, "error", err)
		return res, fmt.Errorf("record deposit: %w", err)
	}

	s.logger.Info("Deposit initiated", "wallet_id", walletID, "transaction_id", created.ID, "gateway_id", charge.GatewayID, "amount", amount)

	return Result{
		TransactionID:    created.ID,
		PaymentCode:      charge.PaymentCode,
		PaymentCodeImage: charge.PaymentCodeImage,
		Amount:           breakdown.Amount,
		Fee:              breakdown.Fee,
		NetAmount:        breakdown.NetAmount,
	}, nil
}
