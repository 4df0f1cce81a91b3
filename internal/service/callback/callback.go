package callback

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
)

// Outcome of reconciling one callback. Every outcome is acknowledged to the gateway.
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeFailed             Outcome = "failed"
	OutcomeUnknownTransaction Outcome = "unknown_transaction"
	OutcomeAlreadyProcessed   Outcome = "already_processed"
	OutcomeKindMismatch       Outcome = "kind_mismatch"
	OutcomeIgnoredStatus      Outcome = "ignored_status"
)

// Gateway statuses by transaction type
var (
	cashInSucceeded = set("PAID_OUT", "PAID", "COMPLETED")
	cashInFailed    = set("CHARGEBACK", "REFUNDED")

	cashOutSucceeded = set("PAID_OUT", "PAID")
	cashOutFailed    = set("CANCELED", "CHARGEBACK", "ERROR")
)

// Notification is verified callback content
type Notification struct {
	GatewayID string
	Kind      string // gateway.KindCashIn, gateway.KindCashOut or empty when not reported
	Status    string
}

type Observer interface {
	ObserveCallback(outcome string)
}

// Reconciler applies gateway status notifications to pending transactions.
// Callbacks may come many times, out of order or never: transaction transitions exactly once.
type Reconciler struct {
	storage  repository.Storage
	logger   logger.Logger
	observer Observer
}

func NewReconciler(storage repository.Storage, l logger.Logger, observer Observer) *Reconciler {
	return &Reconciler{
		storage:  storage,
		logger:   l.WithGroup("callback"),
		observer: observer,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, n Notification) (Outcome, error) {
	if n.GatewayID == "" {
		return "", fmt.Errorf("%w: gateway transaction id is required", apperrors.ErrInvalidInput)
	}

	var outcome Outcome
	err := r.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		outcome, err = r.apply(ctx, storage, n)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to reconcile callback", "gateway_id", n.GatewayID, "status", n.Status, "error", err)
		return "", err
	}

	if r.observer != nil {
		r.observer.ObserveCallback(string(outcome))
	}

	switch outcome {
	case OutcomeCompleted, OutcomeFailed:
		r.logger.Info("Transaction settled", "gateway_id", n.GatewayID, "status", n.Status, "outcome", outcome)
	default:
		r.logger.Warn("Callback not applied", "gateway_id", n.GatewayID, "kind", n.Kind, "status", n.Status, "outcome", outcome)
	}

	return outcome, nil
}

// apply runs inside one db transaction with the transaction row locked,
// so concurrent deliveries of the same callback see each other's result
func (r *Reconciler) apply(ctx context.Context, storage repository.Storage, n Notification) (Outcome, error) {
	t, err := storage.Transaction().GetTransactionByGatewayID(ctx, n.GatewayID, true)
	switch {
	case errors.Is(err, apperrors.ErrTransactionNotFound):
		return OutcomeUnknownTransaction, nil
	case err != nil:
		return "", err
	}

	if t.IsTerminal() {
		return OutcomeAlreadyProcessed, nil
	}
	if !kindMatches(n.Kind, t.Type) {
		return OutcomeKindMismatch, nil
	}

	status, delta, ok := resolve(t, n.Status)
	if !ok {
		return OutcomeIgnoredStatus, nil
	}

	updated, err := storage.Transaction().SetStatus(ctx, t.ID, status)
	if err != nil {
		return "", err
	}

	if !delta.IsZero() {
		if _, err := storage.Wallet().UpdateBalance(ctx, t.WalletID, delta); err != nil {
			return "", err
		}
	}

	kind := models.EventTransactionCompleted
	outcome := OutcomeCompleted
	if status == models.TransactionStatusFailed {
		kind = models.EventTransactionFailed
		outcome = OutcomeFailed
	}

	if _, err := storage.Event().CreateEvent(ctx, models.NewLedgerEvent(kind, updated, delta)); err != nil {
		return "", err
	}

	return outcome, nil
}

// resolve returns new status and balance change for the pending transaction.
// Deposit credits net amount on success. Withdrawal was debited on reservation, so it refunds gross amount on failure.
func resolve(t models.Transaction, status string) (string, decimal.Decimal, bool) {
	switch t.Type {
	case models.TransactionTypeCashIn:
		switch {
		case cashInSucceeded[status]:
			return models.TransactionStatusCompleted, t.NetAmount, true
		case cashInFailed[status]:
			return models.TransactionStatusFailed, decimal.Zero, true
		}
	case models.TransactionTypeCashOut:
		switch {
		case cashOutSucceeded[status]:
			return models.TransactionStatusCompleted, decimal.Zero, true
		case cashOutFailed[status]:
			return models.TransactionStatusFailed, t.Amount, true
		}
	}

	return "", decimal.Zero, false
}

func kindMatches(kind string, transactionType string) bool {
	switch kind {
	case "":
		return true
	case gateway.KindCashIn:
		return transactionType == models.TransactionTypeCashIn
	case gateway.KindCashOut:
		return transactionType == models.TransactionTypeCashOut
	default:
		return false
	}
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
