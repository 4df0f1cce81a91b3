package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
)

// renderError maps service error to response. Unexpected errors are logged and hidden.
func renderError(w http.ResponseWriter, err error, l logger.Logger) {
	var limitErr *apperrors.RateLimitError
	var gatewayErr *apperrors.GatewayError

	switch {
	case errors.As(err, &limitErr):
		remaining, _ := limitErr.Remaining.Float64()
		render.ServiceErrorWithDetails(w,
			"Hourly withdrawal limit exceeded. Available: "+limitErr.Remaining.StringFixed(2)+" this hour",
			http.StatusTooManyRequests,
			map[string]any{"remaining": remaining},
		)
	case errors.As(err, &gatewayErr):
		message := "Payment gateway error: " + gatewayErr.Message
		if gatewayErr.Refunded {
			message += ". Amount returned to wallet"
		}
		render.ServiceErrorWithDetails(w, message, http.StatusBadGateway, map[string]any{"refunded": gatewayErr.Refunded})
	case errors.Is(err, apperrors.ErrWalletNotFound):
		render.ServiceError(w, "Wallet not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		render.ServiceError(w, "Insufficient balance", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrBelowMinimum):
		render.ServiceError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidAmount):
		render.ServiceError(w, err.Error(), http.StatusBadRequest)
	default:
		l.Error("Request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
