package handlers

import (
	"net/http"

	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/service/callback"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
)

// handleCallback expects body already verified by signature middleware.
// Every reconciliation outcome is acknowledged, otherwise gateway keeps retrying.
func handleCallback(reconciler callbackReconciler, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
		Outcome string `json:"outcome"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cb, err := render.BindAndValidate[gateway.Callback](w, r)
		if err != nil {
			return
		}

		outcome, err := reconciler.Reconcile(r.Context(), callback.Notification{
			GatewayID: cb.IDTransaction,
			Kind:      cb.TypeTransaction,
			Status:    cb.StatusTransaction,
		})
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{Message: "Webhook processed", Outcome: string(outcome)})
	})
}
