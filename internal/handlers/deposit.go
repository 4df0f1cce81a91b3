package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
)

func handleDeposit(depositService depositService, l logger.Logger) http.Handler {
	type request struct {
		WalletID uuid.UUID       `json:"walletId" validate:"required"`
		Amount   decimal.Decimal `json:"amount" validate:"required,money"`
	}

	type response struct {
		TransactionID uuid.UUID `json:"transactionId"`
		PixCode       string    `json:"pixCode"`
		PixCodeBase64 string    `json:"pixCodeBase64"`
		Amount        float64   `json:"amount"`
		Fee           float64   `json:"fee"`
		NetAmount     float64   `json:"netAmount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := depositService.Deposit(r.Context(), req.WalletID, req.Amount)
		if err != nil {
			renderError(w, err, l)
			return
		}

		amount, _ := res.Amount.Float64()
		fee, _ := res.Fee.Float64()
		net, _ := res.NetAmount.Float64()
		render.JSON(w, response{
			TransactionID: res.TransactionID,
			PixCode:       res.PaymentCode,
			PixCodeBase64: res.PaymentCodeImage,
			Amount:        amount,
			Fee:           fee,
			NetAmount:     net,
		})
	})
}
