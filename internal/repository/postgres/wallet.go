package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const walletColumns = `id, balance, created_at, updated_at`

func (r *WalletRepo) CreateWallet(ctx context.Context) (models.Wallet, error) {
	const createWallet = `-- name: CreateWallet
	INSERT INTO wallets (id, balance)
	VALUES ($1, 0)
	RETURNING ` + walletColumns

	rows, _ := r.DB.Query(ctx, createWallet, uuid.New())
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)
	if err != nil {
		return wallet, fmt.Errorf("db error: %w", err)
	}

	return wallet, nil
}

func (r *WalletRepo) GetWallet(ctx context.Context, walletID uuid.UUID, lock bool) (models.Wallet, error) {
	getWallet := `-- name: GetWallet
	SELECT ` + walletColumns + ` FROM wallets
	WHERE id = $1`
	if lock {
		getWallet += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getWallet, walletID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

// Balance changed in one statement, so concurrent updates never lose each other
func (r *WalletRepo) UpdateBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (models.Wallet, error) {
	const updateBalance = `-- name: UpdateBalance
	UPDATE wallets
	SET balance = balance + $2, updated_at = now()
	WHERE id = $1
	RETURNING ` + walletColumns

	rows, _ := r.DB.Query(ctx, updateBalance, walletID, delta)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation:
		return wallet, apperrors.ErrInsufficientBalance
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}
