package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
)

func handleCreateWallet(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		WalletID uuid.UUID `json:"walletId"`
		Message  string    `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, err := walletService.Create(r.Context())
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{
			WalletID: wallet.ID,
			Message:  "Wallet created. Keep the wallet id safe: it is the only way to access your funds",
		})
	})
}

func handleGetWallet(walletService walletService, l logger.Logger) http.Handler {
	type transaction struct {
		ID          uuid.UUID `json:"id"`
		Type        string    `json:"type"`
		Amount      float64   `json:"amount"`
		Fee         float64   `json:"fee"`
		NetAmount   float64   `json:"netAmount"`
		Status      string    `json:"status"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	type response struct {
		ID           uuid.UUID     `json:"id"`
		Balance      float64       `json:"balance"`
		CreatedAt    time.Time     `json:"createdAt"`
		Transactions []transaction `json:"transactions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		walletID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid wallet id", http.StatusBadRequest)
			return
		}

		details, err := walletService.Get(r.Context(), walletID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		transactions := make([]transaction, 0, len(details.Transactions))
		for _, t := range details.Transactions {
			amount, _ := t.Amount.Float64()
			fee, _ := t.Fee.Float64()
			net, _ := t.NetAmount.Float64()
			transactions = append(transactions, transaction{
				ID:          t.ID,
				Type:        t.Type,
				Amount:      amount,
				Fee:         fee,
				NetAmount:   net,
				Status:      t.Status,
				Description: t.Description,
				CreatedAt:   t.CreatedAt,
			})
		}

		balance, _ := details.Wallet.Balance.Float64()
		render.JSON(w, response{
			ID:           details.Wallet.ID,
			Balance:      balance,
			CreatedAt:    details.Wallet.CreatedAt,
			Transactions: transactions,
		})
	})
}
