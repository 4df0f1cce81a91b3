package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/logger"
)

type observation struct {
	op  string
	err error
}

type fakeObserver struct {
	calls []observation
}

func (o *fakeObserver) ObserveGatewayCall(op string, err error, _ time.Duration) {
	o.calls = append(o.calls, observation{op: op, err: err})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeObserver) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	observer := &fakeObserver{}
	client := NewClient(Config{
		BaseURL:      srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://wallet.example/api/webhook/suitpay",
		Timeout:      time.Second,
	}, logger.NewNoOpLogger(), observer)

	return client, observer
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_CreateCharge(t *testing.T) {
	t.Run("charge created", func(t *testing.T) {
		var got map[string]any
		client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, chargePath, r.URL.Path)
			require.Equal(t, "client-id", r.Header.Get("ci"))
			require.Equal(t, "client-secret", r.Header.Get("cs"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			writeJSON(w, http.StatusOK, `{"idTransaction":"gw-1","paymentCode":"00020126","paymentCodeBase64":"aW1n"}`)
		})
		client.now = func() time.Time { return time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC) }

		charge, err := client.CreateCharge(t.Context(), decimal.RequireFromString("100"))

		require.NoError(t, err)
		require.Equal(t, Charge{GatewayID: "gw-1", PaymentCode: "00020126", PaymentCodeImage: "aW1n"}, charge)

		require.NotEmpty(t, got["requestNumber"])
		require.Equal(t, "2026-01-01", got["dueDate"], "due date is next day")
		require.InDelta(t, 100.0, got["amount"], 0, "amount sent as json number")
		require.Equal(t, "https://wallet.example/api/webhook/suitpay", got["callbackUrl"])

		payer, ok := got["client"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, DefaultPayerName, payer["name"])
		require.True(t, ValidCPF(payer["document"].(string)), "payer document must be valid CPF, got %v", payer["document"])

		require.Equal(t, []observation{{op: OpCreateCharge}}, observer.calls)
	})

	t.Run("gateway rejects", func(t *testing.T) {
		client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"response":"UNAUTHORIZED","message":"invalid credentials"}`)
		})

		_, err := client.CreateCharge(t.Context(), decimal.NewFromInt(10))

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, OpCreateCharge, gwErr.Op)
		require.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
		require.Equal(t, "invalid credentials", gwErr.Message)
		require.Len(t, observer.calls, 1)
		require.Error(t, observer.calls[0].err)
	})

	t.Run("response without payment code", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"idTransaction":"gw-1"}`)
		})

		_, err := client.CreateCharge(t.Context(), decimal.NewFromInt(10))

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, "failed to generate PIX code", gwErr.Message)
	})

	t.Run("timeout", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		client.cfg.Timeout = 50 * time.Millisecond

		_, err := client.CreateCharge(t.Context(), decimal.NewFromInt(10))

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		require.Error(t, gwErr.Err, "transport error must be kept")
	})
}

func TestClient_CreatePayout(t *testing.T) {
	payout := Payout{
		Amount:   decimal.RequireFromString("39.50"),
		Key:      "user@example.com",
		KeyType:  "EMAIL",
		Name:     "Maria",
		Document: "12345678909",
	}

	t.Run("payout created", func(t *testing.T) {
		var got map[string]any
		client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, payoutPath, r.URL.Path)
			require.Equal(t, "client-id", r.Header.Get("ci"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			writeJSON(w, http.StatusOK, `{"idTransaction":"gw-out-1"}`)
		})

		id, err := client.CreatePayout(t.Context(), payout)

		require.NoError(t, err)
		require.Equal(t, "gw-out-1", id)
		require.InDelta(t, 39.5, got["value"], 0)
		require.Equal(t, "user@example.com", got["key"])
		require.Equal(t, "EMAIL", got["typeKey"])
		require.Equal(t, "Maria", got["name"])
		require.Equal(t, "12345678909", got["document"])
		require.Equal(t, []observation{{op: OpCreatePayout}}, observer.calls)
	})

	t.Run("key type defaults to random key", func(t *testing.T) {
		var got map[string]any
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, `{"idTransaction":"gw-out-2"}`)
		})

		_, err := client.CreatePayout(t.Context(), Payout{Amount: decimal.NewFromInt(5), Key: "abc"})

		require.NoError(t, err)
		require.Equal(t, DefaultKeyType, got["typeKey"])
		require.NotContains(t, got, "name", "empty optional fields omitted")
	})

	t.Run("accepted without id", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"response":"OK"}`)
		})

		id, err := client.CreatePayout(t.Context(), payout)

		require.NoError(t, err)
		require.Equal(t, PendingID, id)
	})

	t.Run("created without id is failure", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusCreated, `{}`)
		})

		_, err := client.CreatePayout(t.Context(), payout)

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, "failed to request withdrawal", gwErr.Message)
	})

	t.Run("gateway error without body", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.CreatePayout(t.Context(), payout)

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
		require.Equal(t, http.StatusText(http.StatusBadGateway), gwErr.Message)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, logger.NewNoOpLogger(), nil)

		_, err := client.CreatePayout(t.Context(), payout)

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		require.Zero(t, gwErr.StatusCode)
		require.NotNil(t, errors.Unwrap(gwErr))
	})
}

func TestCPF(t *testing.T) {
	require.True(t, ValidCPF("52998224725"))
	require.False(t, ValidCPF("52998224724"), "wrong check digit")
	require.False(t, ValidCPF("5299822472"), "too short")
	require.False(t, ValidCPF("5299822472a"), "not digit")

	for range 100 {
		cpf := GenerateCPF()
		require.Len(t, cpf, 11)
		require.True(t, ValidCPF(cpf), "generated CPF %s must be valid", cpf)
	}
}

func TestReason(t *testing.T) {
	require.Equal(t, "invalid key", Reason(fmt.Errorf("wrapped: %w", &Error{Op: OpCreatePayout, Message: "invalid key"})))
	require.Equal(t, "payment gateway request failed", Reason(errors.New("boom")))
}
