package handlers

import (
	"cmp"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/service/withdrawal"
)

func handleWithdraw(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	// Key fields are accepted under both names clients use
	type request struct {
		WalletID   uuid.UUID       `json:"walletId" validate:"required"`
		Amount     decimal.Decimal `json:"amount" validate:"required,money"`
		PixKey     string          `json:"pixKey" validate:"required_without=Key"`
		Key        string          `json:"key"`
		PixKeyType string          `json:"pixKeyType"`
		KeyType    string          `json:"keyType"`
		Name       string          `json:"name"`
		Document   string          `json:"document"`
	}

	type response struct {
		Success       bool      `json:"success"`
		Message       string    `json:"message"`
		TransactionID uuid.UUID `json:"transactionId"`
		NetAmount     float64   `json:"netAmount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := withdrawalService.Withdraw(r.Context(), withdrawal.Request{
			WalletID:   req.WalletID,
			Amount:     req.Amount,
			PixKey:     cmp.Or(req.PixKey, req.Key),
			PixKeyType: cmp.Or(req.PixKeyType, req.KeyType),
			Name:       req.Name,
			Document:   req.Document,
		})
		if err != nil {
			renderError(w, err, l)
			return
		}

		net, _ := res.NetAmount.Float64()
		render.JSON(w, response{
			Success:       true,
			Message:       "Withdrawal requested",
			TransactionID: res.TransactionID,
			NetAmount:     net,
		})
	})
}
