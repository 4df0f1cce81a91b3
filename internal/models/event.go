package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTransactionCreated   = "transaction.created"
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
)

// LedgerEvent is an outbox record written together with every transaction state change
type LedgerEvent struct {
	ID            int64
	Kind          string
	TransactionID uuid.UUID
	WalletID      uuid.UUID
	Type          string
	Status        string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	NetAmount     decimal.Decimal
	BalanceDelta  decimal.Decimal // signed change applied to the wallet by this event
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewLedgerEvent builds event for the transaction's current state
func NewLedgerEvent(kind string, t Transaction, balanceDelta decimal.Decimal) LedgerEvent {
	return LedgerEvent{
		Kind:          kind,
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		Type:          t.Type,
		Status:        t.Status,
		Amount:        t.Amount,
		Fee:           t.Fee,
		NetAmount:     t.NetAmount,
		BalanceDelta:  balanceDelta,
	}
}
