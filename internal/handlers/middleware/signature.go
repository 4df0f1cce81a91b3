package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/nkiryanov/pixwallet/internal/handlers/render"
)

// Callbacks are small, anything bigger is not from the gateway
const maxCallbackBody = 64 << 10

type callbackVerifier interface {
	VerifyCallback(raw []byte) bool
}

// SignatureMiddleware passes request further only if its body is signed by the gateway.
// Body is restored, so next handler reads it as usual.
func SignatureMiddleware(v callbackVerifier, l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
			if err != nil {
				render.ServiceError(w, "Failed to read request body", http.StatusBadRequest)
				return
			}

			if !v.VerifyCallback(raw) {
				l.Warn("callback rejected, bad signature", "uri", r.RequestURI, "size", len(raw))
				render.ServiceError(w, "Invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(raw))
			next.ServeHTTP(w, r)
		})
	}
}
