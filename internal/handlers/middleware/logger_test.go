package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Allow to use a function as logger, level passed first
type loggerFunc func(level string, msg string, args ...any)

func (f loggerFunc) Info(msg string, v ...any)  { f("info", msg, v...) }
func (f loggerFunc) Warn(msg string, v ...any)  { f("warn", msg, v...) }
func (f loggerFunc) Error(msg string, v ...any) { f("error", msg, v...) }

func TestLoggerMiddleware(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		called := 0
		var level, msg string
		var args []any

		logger := loggerFunc(func(lvl string, m string, v ...any) {
			called++
			level = lvl
			msg = m
			args = v
		})

		mux := http.NewServeMux()
		mux.HandleFunc("GET /wallet/{id}", func(w http.ResponseWriter, r *http.Request) {
			_, err := w.Write([]byte("hi"))
			require.NoError(t, err, "should write response")
		})

		srv := httptest.NewServer(LoggerMiddleware(logger)(mux))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/wallet/42")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, "hi", string(body), "should return 'hi' in response")

		require.Equal(t, 1, called, "logger should be called once")
		require.Equal(t, "info", level)
		require.Equal(t, "got HTTP request", msg, "logger should log 'got HTTP request'")
		require.Len(t, args, 12, "logger should log 12 fields")
		require.Equal(t, "method", args[0])
		require.Equal(t, "GET", args[1])
		require.Equal(t, "uri", args[2])
		require.Equal(t, "/wallet/42", args[3])
		require.Equal(t, "route", args[4])
		require.Equal(t, "GET /wallet/{id}", args[5], "route is the matched pattern")
		require.Equal(t, "duration", args[6])
		require.NotEmpty(t, args[7], "duration should not be empty")
		require.Equal(t, "status", args[8])
		require.Equal(t, http.StatusOK, args[9])
		require.Equal(t, "size", args[10])
		require.Equal(t, 2, args[11], "size should be 2 (length of 'hi')")
	})

	t.Run("level by status", func(t *testing.T) {
		tests := []struct {
			status int
			level  string
		}{
			{http.StatusOK, "info"},
			{http.StatusTooManyRequests, "warn"},
			{http.StatusNotFound, "warn"},
			{http.StatusBadGateway, "error"},
		}

		for _, tt := range tests {
			var level string
			logger := loggerFunc(func(lvl string, _ string, _ ...any) { level = lvl })
			h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			rec := httptest.NewRecorder()
			LoggerMiddleware(logger)(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.level, level, "status %d", tt.status)
		}
	})
}
