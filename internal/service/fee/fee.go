package fee

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
)

var (
	DefaultDepositRate     = decimal.RequireFromString("0.15")
	DefaultWithdrawalRate  = decimal.RequireFromString("0.15")
	DefaultWithdrawalFixed = decimal.RequireFromString("3.00")
)

// Money is kept in cents
const centPlaces = 2

// MaxAmount is the largest amount money columns (NUMERIC(18,2)) can hold
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// Policy computes fee for deposits and withdrawals
//
// Deposit fee is deducted from what the wallet receives.
// Withdrawal fee is deducted from what is sent out while the wallet is debited the full amount.
type Policy struct {
	DepositRate     decimal.Decimal
	WithdrawalRate  decimal.Decimal
	WithdrawalFixed decimal.Decimal
}

type Breakdown struct {
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	NetAmount decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		DepositRate:     DefaultDepositRate,
		WithdrawalRate:  DefaultWithdrawalRate,
		WithdrawalFixed: DefaultWithdrawalFixed,
	}
}

func (p Policy) Compute(amount decimal.Decimal, transactionType string) (Breakdown, error) {
	if !amount.IsPositive() {
		return Breakdown{}, apperrors.ErrInvalidAmount
	}

	var fee decimal.Decimal
	switch transactionType {
	case models.TransactionTypeCashIn:
		fee = amount.Mul(p.DepositRate)
	case models.TransactionTypeCashOut:
		fee = p.WithdrawalFixed.Add(amount.Mul(p.WithdrawalRate))
	default:
		return Breakdown{}, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrInvalidInput, transactionType)
	}

	fee = fee.Round(centPlaces)

	return Breakdown{
		Amount:    amount,
		Fee:       fee,
		NetAmount: amount.Sub(fee),
	}, nil
}

// CheckAmount accepts positive amounts with at most cents precision, up to MaxAmount
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", apperrors.ErrInvalidInput, MaxAmount.StringFixed(centPlaces))
	}
	if !amount.Equal(amount.Round(centPlaces)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", apperrors.ErrInvalidInput, centPlaces)
	}
	return nil
}
