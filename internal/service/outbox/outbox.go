package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
)

const (
	DefaultInterval  = 5 * time.Second
	DefaultBatchSize = 100
)

// Message is the published representation of a ledger event
type Message struct {
	EventID       int64           `json:"eventId"`
	Kind          string          `json:"kind"`
	TransactionID uuid.UUID       `json:"transactionId"`
	WalletID      uuid.UUID       `json:"walletId"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	NetAmount     decimal.Decimal `json:"netAmount"`
	BalanceDelta  decimal.Decimal `json:"balanceDelta"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Encode returns message key and value. Events are keyed by wallet, so one wallet's events stay ordered.
func Encode(e models.LedgerEvent) ([]byte, []byte, error) {
	value, err := json.Marshal(Message{
		EventID:       e.ID,
		Kind:          e.Kind,
		TransactionID: e.TransactionID,
		WalletID:      e.WalletID,
		Type:          e.Type,
		Status:        e.Status,
		Amount:        e.Amount,
		Fee:           e.Fee,
		NetAmount:     e.NetAmount,
		BalanceDelta:  e.BalanceDelta,
		OccurredAt:    e.CreatedAt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode event %d: %w", e.ID, err)
	}

	return []byte(e.WalletID.String()), value, nil
}

type Publisher interface {
	// Publish all events or return error. Events may be published again after an error.
	Publish(ctx context.Context, events []models.LedgerEvent) error
	Close() error
}

// LogPublisher writes events to the log. Used when no broker configured.
type LogPublisher struct {
	logger logger.Logger
}

func NewLogPublisher(l logger.Logger) *LogPublisher {
	return &LogPublisher{logger: l.WithGroup("outbox")}
}

func (p *LogPublisher) Publish(_ context.Context, events []models.LedgerEvent) error {
	for _, e := range events {
		_, value, err := Encode(e)
		if err != nil {
			return err
		}
		p.logger.Info("Ledger event", "event_id", e.ID, "kind", e.Kind, "payload", string(value))
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
