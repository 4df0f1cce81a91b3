package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
	"github.com/nkiryanov/pixwallet/internal/service/fee"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
)

const description = "PIX withdrawal"

var (
	DefaultMinAmount   = decimal.RequireFromString("4.00")
	DefaultHourlyLimit = decimal.RequireFromString("150.00")
)

const DefaultWindow = time.Hour

type Config struct {
	MinAmount decimal.Decimal

	// Gross amount wallet may withdraw within the rolling window
	HourlyLimit decimal.Decimal
	Window      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinAmount:   DefaultMinAmount,
		HourlyLimit: DefaultHourlyLimit,
		Window:      DefaultWindow,
	}
}

type Gateway interface {
	CreatePayout(ctx context.Context, p gateway.Payout) (string, error)
}

type Observer interface {
	ObserveWithdrawal(err error)
}

type Request struct {
	WalletID   uuid.UUID
	Amount     decimal.Decimal
	PixKey     string
	PixKeyType string
	Name       string
	Document   string
}

type Result struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	NetAmount     decimal.Decimal
}

// Service reserves wallet funds and asks the gateway to pay them out.
// Reservation is compensated when the gateway refuses the payout.
type Service struct {
	storage  repository.Storage
	gateway  Gateway
	policy   fee.Policy
	cfg      Config
	logger   logger.Logger
	observer Observer

	now func() time.Time
}

func NewService(storage repository.Storage, gw Gateway, policy fee.Policy, cfg Config, l logger.Logger, observer Observer) *Service {
	return &Service{
		storage:  storage,
		gateway:  gw,
		policy:   policy,
		cfg:      cfg,
		logger:   l.WithGroup("withdrawal"),
		observer: observer,
		now:      time.Now,
	}
}

func (s *Service) Withdraw(ctx context.Context, req Request) (res Result, err error) {
	defer func() {
		if s.observer != nil {
			s.observer.ObserveWithdrawal(err)
		}
	}()

	if req.WalletID == uuid.Nil || strings.TrimSpace(req.PixKey) == "" {
		return res, fmt.Errorf("%w: wallet and pix key are required", apperrors.ErrInvalidInput)
	}
	if err := fee.CheckAmount(req.Amount); err != nil {
		return res, err
	}
	if req.Amount.LessThan(s.cfg.MinAmount) {
		return res, fmt.Errorf("%w: minimum is %s", apperrors.ErrBelowMinimum, s.cfg.MinAmount.StringFixed(2))
	}

	breakdown, err := s.policy.Compute(req.Amount, models.TransactionTypeCashOut)
	if err != nil {
		return res, err
	}
	if !breakdown.NetAmount.IsPositive() {
		return res, fmt.Errorf("%w: amount does not cover fee %s", apperrors.ErrBelowMinimum, breakdown.Fee.StringFixed(2))
	}

	reserved, err := s.reserve(ctx, req.WalletID, breakdown)
	if err != nil {
		return res, err
	}

	gatewayID, err := s.gateway.CreatePayout(ctx, gateway.Payout{
		Amount:   breakdown.NetAmount,
		Key:      req.PixKey,
		KeyType:  req.PixKeyType,
		Name:     req.Name,
		Document: req.Document,
	})
	if err != nil {
		s.logger.Warn("Payout failed, returning funds", "transaction_id", reserved.ID, "wallet_id", req.WalletID, "error", err)

		// Request context may be already done, but reserved funds must go back anyway
		if cerr := s.compensate(context.WithoutCancel(ctx), reserved); cerr != nil {
			s.logger.Error("Failed to return reserved funds", "transaction_id", reserved.ID, "wallet_id", req.WalletID, "error", cerr)
			return res, fmt.Errorf("compensate withdrawal %s: %w", reserved.ID, errors.Join(err, cerr))
		}

		return res, &apperrors.GatewayError{Message: gateway.Reason(err), Refunded: true, Err: err}
	}

	switch gatewayID {
	case gateway.PendingID:
		s.logger.Warn("Payout accepted without gateway id", "transaction_id", reserved.ID)
	default:
		// Payout already sent: without the id its callbacks are unknown, so the write must outlive the request.
		// Failing here would make user retry and pay twice.
		if _, err := s.storage.Transaction().SetGatewayID(context.WithoutCancel(ctx), reserved.ID, gatewayID); err != nil {
			s.logger.Error("Failed to store gateway id", "transaction_id", reserved.ID, "gateway_id", gatewayID, "error", err)
		}
	}

	s.logger.Info("Withdrawal initiated", "wallet_id", req.WalletID, "transaction_id", reserved.ID, "gateway_id", gatewayID, "amount", req.Amount)

	return Result{
		TransactionID: reserved.ID,
		Amount:        breakdown.Amount,
		Fee:           breakdown.Fee,
		NetAmount:     breakdown.NetAmount,
	}, nil
}

// reserve checks balance and rate limit and debits the wallet while holding wallet row lock,
// so concurrent withdrawals from one wallet are serialized
func (s *Service) reserve(ctx context.Context, walletID uuid.UUID, b fee.Breakdown) (models.Transaction, error) {
	var reserved models.Transaction

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		wallet, err := storage.Wallet().GetWallet(ctx, walletID, true)
		if err != nil {
			return err
		}
		if wallet.Balance.LessThan(b.Amount) {
			return apperrors.ErrInsufficientBalance
		}

		used, err := storage.Transaction().SumWithdrawals(ctx, walletID, s.now().Add(-s.cfg.Window))
		if err != nil {
			return err
		}
		if used.Add(b.Amount).GreaterThan(s.cfg.HourlyLimit) {
			remaining := decimal.Max(s.cfg.HourlyLimit.Sub(used), decimal.Zero)
			return &apperrors.RateLimitError{Remaining: remaining}
		}

		reserved, err = storage.Transaction().CreateTransaction(ctx, models.Transaction{
			WalletID:    walletID,
			Type:        models.TransactionTypeCashOut,
			Amount:      b.Amount,
			Fee:         b.Fee,
			NetAmount:   b.NetAmount,
			Status:      models.TransactionStatusPending,
			Description: description,
		})
		if err != nil {
			return err
		}

		if _, err := storage.Wallet().UpdateBalance(ctx, walletID, b.Amount.Neg()); err != nil {
			return err
		}

		_, err = storage.Event().CreateEvent(ctx, models.NewLedgerEvent(models.EventTransactionCreated, reserved, b.Amount.Neg()))
		return err
	})

	return reserved, err
}

// compensate fails still pending withdrawal and returns gross amount to the wallet
func (s *Service) compensate(ctx context.Context, reserved models.Transaction) error {
	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		failed, err := storage.Transaction().SetStatus(ctx, reserved.ID, models.TransactionStatusFailed)
		switch {
		case errors.Is(err, apperrors.ErrTransactionNotPending):
			// Settled by callback meanwhile, its effect already applied
			return nil
		case err != nil:
			return err
		}

		if _, err := storage.Wallet().UpdateBalance(ctx, reserved.WalletID, reserved.Amount); err != nil {
			return err
		}

		_, err = storage.Event().CreateEvent(ctx, models.NewLedgerEvent(models.EventTransactionFailed, failed, reserved.Amount))
		return err
	})
}
