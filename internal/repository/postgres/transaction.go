package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
)

type TransactionRepo struct {
	DB DBTX
}

const transactionColumns = `id, wallet_id, type, amount, fee, net_amount, status, gateway_id, pix_code, description, created_at, updated_at`

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	const createTransaction = `-- name: CreateTransaction
	INSERT INTO transactions (id, wallet_id, type, amount, fee, net_amount, status, gateway_id, pix_code, description, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	RETURNING ` + transactionColumns

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.WalletID, t.Type, t.Amount, t.Fee, t.NetAmount, t.Status, t.GatewayID, t.PixCode, t.Description, t.CreatedAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return created, nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
		return created, apperrors.ErrWalletNotFound
	default:
		return created, fmt.Errorf("db error: %w", err)
	}
}

func (r *TransactionRepo) GetTransaction(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error) {
	const getTransaction = `-- name: GetTransaction
	SELECT ` + transactionColumns + ` FROM transactions
	WHERE id = $1`

	rows, _ := r.DB.Query(ctx, getTransaction, transactionID)
	return collectTransaction(rows)
}

func (r *TransactionRepo) GetTransactionByGatewayID(ctx context.Context, gatewayID string, lock bool) (models.Transaction, error) {
	getByGatewayID := `-- name: GetTransactionByGatewayID
	SELECT ` + transactionColumns + ` FROM transactions
	WHERE gateway_id = $1`
	if lock {
		getByGatewayID += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getByGatewayID, gatewayID)
	return collectTransaction(rows)
}

func (r *TransactionRepo) SetGatewayID(ctx context.Context, transactionID uuid.UUID, gatewayID string) (models.Transaction, error) {
	const setGatewayID = `-- name: SetGatewayID
	UPDATE transactions
	SET gateway_id = $2, updated_at = now()
	WHERE id = $1
	RETURNING ` + transactionColumns

	rows, _ := r.DB.Query(ctx, setGatewayID, transactionID, gatewayID)
	return collectTransaction(rows)
}

// Only pending transaction may change status: terminal ones stay as is
func (r *TransactionRepo) SetStatus(ctx context.Context, transactionID uuid.UUID, status string) (models.Transaction, error) {
	const setStatus = `-- name: SetStatus
	UPDATE transactions
	SET status = $2, updated_at = now()
	WHERE id = $1 AND status = 'PENDING'
	RETURNING ` + transactionColumns

	rows, _ := r.DB.Query(ctx, setStatus, transactionID, status)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Distinguish missing transaction from already settled one
		if _, getErr := r.GetTransaction(ctx, transactionID); getErr != nil {
			return t, getErr
		}
		return t, apperrors.ErrTransactionNotPending
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

func (r *TransactionRepo) SumWithdrawals(ctx context.Context, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	const sumWithdrawals = `-- name: SumWithdrawals
	SELECT COALESCE(SUM(amount), 0) FROM transactions
	WHERE wallet_id = $1
		AND type = 'CASH_OUT'
		AND status <> 'FAILED'
		AND created_at >= $2`

	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumWithdrawals, walletID, since).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func (r *TransactionRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error) {
	const listTransactions = `-- name: ListTransactions
	SELECT ` + transactionColumns + ` FROM transactions
	WHERE wallet_id = $1
	ORDER BY created_at DESC
	LIMIT $2`

	rows, _ := r.DB.Query(ctx, listTransactions, walletID, limit)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func collectTransaction(rows pgx.Rows) (models.Transaction, error) {
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Fee, &t.NetAmount, &t.Status,
		&t.GatewayID, &t.PixCode, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
