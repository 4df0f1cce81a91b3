package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/logger"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestSign(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "fields in received order",
			payload: `{"idTransaction":"X","typeTransaction":"PIX","statusTransaction":"PAID_OUT","value":100.5}`,
			want:    sha("XPIXPAID_OUT100.5secret"),
		},
		{
			name:    "hash excluded wherever it is",
			payload: `{"hash":"whatever","statusTransaction":"PAID","idTransaction":"Y"}`,
			want:    sha("PAIDYsecret"),
		},
		{
			name:    "integer number and bool",
			payload: `{"value":100.00,"paid":true}`,
			want:    sha("100truesecret"),
		},
		{
			name:    "nested values",
			payload: `{"payer":{"name":"a"},"tags":["a",1,null]}`,
			want:    sha("[object Object]a,1,secret"),
		},
		{
			name:    "tiny and huge numbers in exponent form",
			payload: `{"a":0.0000001,"b":0.000001,"c":1.5e-7,"d":1e21,"e":123456789012345680000,"f":-2.5e30}`,
			want:    sha("1e-70.0000011.5e-71e+21123456789012345680000-2.5e+30secret"),
		},
		{
			name:    "negative zero",
			payload: `{"value":-0.0}`,
			want:    sha("0secret"),
		},
		{
			name:    "index keys first in ascending order",
			payload: `{"b":"x","10":"t","2":"y","1":"z","01":"w","-1":"v"}`,
			want:    sha("zytxwvsecret"),
		},
		{
			name:    "repeated key keeps first position and last value",
			payload: `{"a":"1","b":"2","a":"3"}`,
			want:    sha("32secret"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sign([]byte(tt.payload), "secret")

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestVerify(t *testing.T) {
	body := `{"idTransaction":"X","typeTransaction":"PIX","statusTransaction":"PAID_OUT","value":100`
	hash := sha("XPIXPAID_OUT100secret")

	t.Run("valid", func(t *testing.T) {
		require.True(t, Verify([]byte(body+`,"hash":"`+hash+`"}`), "secret"))
	})

	t.Run("client verifies with own secret", func(t *testing.T) {
		client := NewClient(Config{ClientSecret: "secret"}, logger.NewNoOpLogger(), nil)

		require.True(t, client.VerifyCallback([]byte(body+`,"hash":"`+hash+`"}`)))
	})

	tests := []struct {
		name    string
		payload string
	}{
		{"wrong secret hash", body + `,"hash":"` + sha("XPIXPAID_OUT100other") + `"}`},
		{"tampered status", `{"idTransaction":"X","typeTransaction":"PIX","statusTransaction":"PAID","value":100,"hash":"` + hash + `"}`},
		{"reordered fields", `{"typeTransaction":"PIX","idTransaction":"X","statusTransaction":"PAID_OUT","value":100,"hash":"` + hash + `"}`},
		{"missing hash", body + `}`},
		{"hash not string", body + `,"hash":1}`},
		{"null field", `{"idTransaction":null,"hash":"` + hash + `"}`},
		{"not object", `["X"]`},
		{"broken json", body},
		{"trailing data", body + `,"hash":"` + hash + `"}{}`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, Verify([]byte(tt.payload), "secret"))
		})
	}
}

func TestSignPayload(t *testing.T) {
	t.Run("signed payload verifies", func(t *testing.T) {
		raw := `{"idTransaction":"X","typeTransaction":"PIX","statusTransaction":"PAID_OUT","value":100}`

		signed, err := SignPayload([]byte(raw), "secret")

		require.NoError(t, err)
		require.Equal(t,
			`{"idTransaction":"X","typeTransaction":"PIX","statusTransaction":"PAID_OUT","value":100,"hash":"`+sha("XPIXPAID_OUT100secret")+`"}`,
			string(signed),
		)
		require.True(t, Verify(signed, "secret"))
	})

	t.Run("empty object", func(t *testing.T) {
		signed, err := SignPayload([]byte(` { } `), "secret")

		require.NoError(t, err)
		require.Equal(t, `{"hash":"`+sha("secret")+`"}`, string(signed))
	})

	t.Run("already signed", func(t *testing.T) {
		_, err := SignPayload([]byte(`{"idTransaction":"X","hash":"abc"}`), "secret")

		require.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := SignPayload([]byte(`{"idTransaction":`), "secret")

		require.Error(t, err)
	})
}
