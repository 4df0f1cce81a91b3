package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/pixwallet/internal/models"
)

type EventRepo struct {
	DB DBTX
}

const eventColumns = `id, kind, transaction_id, wallet_id, type, status, amount, fee, net_amount, balance_delta, created_at, published_at`

func (r *EventRepo) CreateEvent(ctx context.Context, e models.LedgerEvent) (models.LedgerEvent, error) {
	const createEvent = `-- name: CreateEvent
	INSERT INTO ledger_events (kind, transaction_id, wallet_id, type, status, amount, fee, net_amount, balance_delta)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + eventColumns

	rows, _ := r.DB.Query(ctx, createEvent,
		e.Kind, e.TransactionID, e.WalletID, e.Type, e.Status, e.Amount, e.Fee, e.NetAmount, e.BalanceDelta,
	)
	created, err := pgx.CollectOneRow(rows, rowToEvent)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *EventRepo) ListUnpublished(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	const listUnpublished = `-- name: ListUnpublished
	SELECT ` + eventColumns + ` FROM ledger_events
	WHERE published_at IS NULL
	ORDER BY id
	LIMIT $1`

	rows, _ := r.DB.Query(ctx, listUnpublished, limit)
	events, err := pgx.CollectRows(rows, rowToEvent)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return events, nil
}

func (r *EventRepo) MarkPublished(ctx context.Context, eventID int64, at time.Time) error {
	const markPublished = `-- name: MarkPublished
	UPDATE ledger_events
	SET published_at = $2
	WHERE id = $1 AND published_at IS NULL`

	_, err := r.DB.Exec(ctx, markPublished, eventID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func rowToEvent(row pgx.CollectableRow) (models.LedgerEvent, error) {
	var e models.LedgerEvent
	err := row.Scan(
		&e.ID, &e.Kind, &e.TransactionID, &e.WalletID, &e.Type, &e.Status,
		&e.Amount, &e.Fee, &e.NetAmount, &e.BalanceDelta, &e.CreatedAt, &e.PublishedAt,
	)
	return e, err
}
