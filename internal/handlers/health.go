package handlers

import (
	"net/http"

	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
)

func handleHealth(db pinger, l logger.Logger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			l.Warn("Health check failed", "error", err)
			render.ServiceError(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, response{Status: "ok"})
	})
}
