package callback

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
	"github.com/nkiryanov/pixwallet/internal/repository/postgres"
	"github.com/nkiryanov/pixwallet/internal/service/deposit"
	"github.com/nkiryanov/pixwallet/internal/service/fee"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
	"github.com/nkiryanov/pixwallet/internal/testutil"
)

type chargeGateway struct {
	id string
}

func (g chargeGateway) CreateCharge(_ context.Context, _ decimal.Decimal) (gateway.Charge, error) {
	return gateway.Charge{GatewayID: g.id, PaymentCode: "pix-code"}, nil
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *fakeObserver) ObserveCallback(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	reconciler *Reconciler
	storage    repository.Storage
	walletID   uuid.UUID
}

func (f fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()

	wallet, err := f.storage.Wallet().GetWallet(t.Context(), f.walletID, false)
	require.NoError(t, err)
	return wallet.Balance
}

func (f fixture) pending(t *testing.T, transactionType string, gatewayID string, amount, fee, net string) models.Transaction {
	t.Helper()

	created, err := f.storage.Transaction().CreateTransaction(t.Context(), models.Transaction{
		WalletID:  f.walletID,
		Type:      transactionType,
		Amount:    d(amount),
		Fee:       d(fee),
		NetAmount: d(net),
		Status:    models.TransactionStatusPending,
		GatewayID: &gatewayID,
	})
	require.NoError(t, err)
	return created
}

func (f fixture) status(t *testing.T, transactionID uuid.UUID) string {
	t.Helper()

	tr, err := f.storage.Transaction().GetTransaction(t.Context(), transactionID)
	require.NoError(t, err)
	return tr.Status
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, balance string, fn func(f fixture)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			wallet, err := storage.Wallet().CreateWallet(t.Context())
			require.NoError(t, err)
			if balance != "0" {
				_, err = storage.Wallet().UpdateBalance(t.Context(), wallet.ID, d(balance))
				require.NoError(t, err)
			}

			fn(fixture{
				reconciler: NewReconciler(storage, logger.NewNoOpLogger(), nil),
				storage:    storage,
				walletID:   wallet.ID,
			})
		})
	}

	t.Run("deposit confirmed once", func(t *testing.T) {
		withTx(t, "0", func(f fixture) {
			deposits := deposit.NewService(f.storage, chargeGateway{id: "X"}, fee.DefaultPolicy(), logger.NewNoOpLogger(), nil)
			res, err := deposits.Deposit(t.Context(), f.walletID, d("100.00"))
			require.NoError(t, err)
			require.True(t, f.balance(t).IsZero())

			n := Notification{GatewayID: "X", Kind: gateway.KindCashIn, Status: "PAID_OUT"}

			outcome, err := f.reconciler.Reconcile(t.Context(), n)
			require.NoError(t, err)
			require.Equal(t, OutcomeCompleted, outcome)
			require.Equal(t, models.TransactionStatusCompleted, f.status(t, res.TransactionID))
			require.True(t, f.balance(t).Equal(d("85")), "net amount credited, got %s", f.balance(t))

			outcome, err = f.reconciler.Reconcile(t.Context(), n)
			require.NoError(t, err)
			require.Equal(t, OutcomeAlreadyProcessed, outcome)
			require.True(t, f.balance(t).Equal(d("85")), "replay must not credit twice")

			outcome, err = f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "X", Kind: gateway.KindCashIn, Status: "REFUNDED"})
			require.NoError(t, err)
			require.Equal(t, OutcomeAlreadyProcessed, outcome, "terminal transaction never reopened")
			require.Equal(t, models.TransactionStatusCompleted, f.status(t, res.TransactionID))
		})
	})

	t.Run("deposit success statuses", func(t *testing.T) {
		for _, status := range []string{"PAID_OUT", "PAID", "COMPLETED"} {
			withTx(t, "0", func(f fixture) {
				f.pending(t, models.TransactionTypeCashIn, "in-1", "10", "1.50", "8.50")

				outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "in-1", Status: status})

				require.NoError(t, err)
				require.Equal(t, OutcomeCompleted, outcome, "status %s", status)
				require.True(t, f.balance(t).Equal(d("8.50")))
			})
		}
	})

	t.Run("deposit failure statuses", func(t *testing.T) {
		for _, status := range []string{"CHARGEBACK", "REFUNDED"} {
			withTx(t, "0", func(f fixture) {
				created := f.pending(t, models.TransactionTypeCashIn, "in-1", "10", "1.50", "8.50")

				outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "in-1", Kind: gateway.KindCashIn, Status: status})

				require.NoError(t, err)
				require.Equal(t, OutcomeFailed, outcome, "status %s", status)
				require.Equal(t, models.TransactionStatusFailed, f.status(t, created.ID))
				require.True(t, f.balance(t).IsZero(), "failed deposit credits nothing")
			})
		}
	})

	t.Run("withdrawal success keeps reservation", func(t *testing.T) {
		for _, status := range []string{"PAID_OUT", "PAID"} {
			withTx(t, "35", func(f fixture) {
				created := f.pending(t, models.TransactionTypeCashOut, "out-1", "50", "10.50", "39.50")

				outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "out-1", Kind: gateway.KindCashOut, Status: status})

				require.NoError(t, err)
				require.Equal(t, OutcomeCompleted, outcome)
				require.Equal(t, models.TransactionStatusCompleted, f.status(t, created.ID))
				require.True(t, f.balance(t).Equal(d("35")), "balance unchanged")
			})
		}
	})

	t.Run("withdrawal failure refunds gross amount", func(t *testing.T) {
		for _, status := range []string{"CANCELED", "CHARGEBACK", "ERROR"} {
			withTx(t, "35", func(f fixture) {
				created := f.pending(t, models.TransactionTypeCashOut, "out-1", "50", "10.50", "39.50")

				outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "out-1", Kind: gateway.KindCashOut, Status: status})
				require.NoError(t, err)
				require.Equal(t, OutcomeFailed, outcome)
				require.Equal(t, models.TransactionStatusFailed, f.status(t, created.ID))
				require.True(t, f.balance(t).Equal(d("85")), "gross amount refunded, got %s", f.balance(t))

				outcome, err = f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "out-1", Kind: gateway.KindCashOut, Status: status})
				require.NoError(t, err)
				require.Equal(t, OutcomeAlreadyProcessed, outcome)
				require.True(t, f.balance(t).Equal(d("85")), "refund applied once")
			})
		}
	})

	t.Run("settlement writes ledger event", func(t *testing.T) {
		withTx(t, "35", func(f fixture) {
			created := f.pending(t, models.TransactionTypeCashOut, "out-1", "50", "10.50", "39.50")

			_, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "out-1", Status: "CANCELED"})
			require.NoError(t, err)

			events, err := f.storage.Event().ListUnpublished(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, events, 1)
			require.Equal(t, models.EventTransactionFailed, events[0].Kind)
			require.Equal(t, created.ID, events[0].TransactionID)
			require.Equal(t, models.TransactionStatusFailed, events[0].Status)
			require.True(t, events[0].BalanceDelta.Equal(d("50")))
		})
	})

	t.Run("unknown transaction", func(t *testing.T) {
		withTx(t, "0", func(f fixture) {
			outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "nope", Status: "PAID_OUT"})

			require.NoError(t, err)
			require.Equal(t, OutcomeUnknownTransaction, outcome)
		})
	})

	t.Run("kind mismatch", func(t *testing.T) {
		for _, kind := range []string{gateway.KindCashOut, "BOLETO"} {
			withTx(t, "0", func(f fixture) {
				created := f.pending(t, models.TransactionTypeCashIn, "in-1", "10", "1.50", "8.50")

				outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "in-1", Kind: kind, Status: "PAID_OUT"})

				require.NoError(t, err)
				require.Equal(t, OutcomeKindMismatch, outcome)
				require.Equal(t, models.TransactionStatusPending, f.status(t, created.ID))
				require.True(t, f.balance(t).IsZero())
			})
		}
	})

	t.Run("unrecognized status keeps pending", func(t *testing.T) {
		withTx(t, "0", func(f fixture) {
			created := f.pending(t, models.TransactionTypeCashIn, "in-1", "10", "1.50", "8.50")

			outcome, err := f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "in-1", Status: "WAITING_FOR_APPROVAL"})

			require.NoError(t, err)
			require.Equal(t, OutcomeIgnoredStatus, outcome)
			require.Equal(t, models.TransactionStatusPending, f.status(t, created.ID))

			outcome, err = f.reconciler.Reconcile(t.Context(), Notification{GatewayID: "in-1", Status: "PAID"})
			require.NoError(t, err)
			require.Equal(t, OutcomeCompleted, outcome, "later callback still settles")
		})
	})

	t.Run("gateway id required", func(t *testing.T) {
		withTx(t, "0", func(f fixture) {
			_, err := f.reconciler.Reconcile(t.Context(), Notification{Status: "PAID"})

			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	})
}

func TestReconcile_ConcurrentReplay(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	wallet, err := storage.Wallet().CreateWallet(t.Context())
	require.NoError(t, err)
	gatewayID := "concurrent-" + uuid.NewString()
	_, err = storage.Transaction().CreateTransaction(t.Context(), models.Transaction{
		WalletID:  wallet.ID,
		Type:      models.TransactionTypeCashIn,
		Amount:    d("100"),
		Fee:       d("15"),
		NetAmount: d("85"),
		Status:    models.TransactionStatusPending,
		GatewayID: &gatewayID,
	})
	require.NoError(t, err)

	observer := &fakeObserver{}
	reconciler := NewReconciler(storage, logger.NewNoOpLogger(), observer)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reconciler.Reconcile(t.Context(), Notification{GatewayID: gatewayID, Kind: gateway.KindCashIn, Status: "PAID_OUT"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	completed := 0
	for _, outcome := range observer.outcomes {
		if outcome == string(OutcomeCompleted) {
			completed++
			continue
		}
		require.Equal(t, string(OutcomeAlreadyProcessed), outcome)
	}
	require.Equal(t, 1, completed, "exactly one delivery settles the transaction")
	require.Len(t, observer.outcomes, 8)

	got, err := storage.Wallet().GetWallet(t.Context(), wallet.ID, false)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(d("85")), "got %s", got.Balance)
}
