package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeCashIn  = "CASH_IN"
	TransactionTypeCashOut = "CASH_OUT"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

type Transaction struct {
	ID        uuid.UUID
	WalletID  uuid.UUID
	Type      string
	Amount    decimal.Decimal // gross amount requested by user
	Fee       decimal.Decimal
	NetAmount decimal.Decimal // Amount - Fee

	Status      string
	GatewayID   *string // nil until the gateway assigned an id
	PixCode     *string
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the transaction already settled one way or another
func (t Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}
