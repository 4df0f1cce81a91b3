package gateway

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

const hashField = "hash"

var errMalformedCallback = errors.New("malformed callback payload")

// Callback is the status notification gateway posts to callback url
type Callback struct {
	IDTransaction     string `json:"idTransaction"`
	TypeTransaction   string `json:"typeTransaction"`
	StatusTransaction string `json:"statusTransaction"`
}

// Callback kinds
const (
	KindCashIn  = "PIX"
	KindCashOut = "PIX_CASHOUT"
)

// Sign computes callback hash: sha256 hex of every top level field value except hash,
// concatenated in the order gateway enumerates fields (see canonicalize), followed by the secret.
func Sign(raw []byte, secret string) (string, error) {
	payload, _, err := canonicalize(raw)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(payload + secret))
	return hex.EncodeToString(sum[:]), nil
}

// SignPayload returns payload with hash field appended, the form gateway posts callbacks in
func SignPayload(raw []byte, secret string) ([]byte, error) {
	payload, existing, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, fmt.Errorf("%w: payload already signed", errMalformedCallback)
	}

	sum := sha256.Sum256([]byte(payload + secret))
	field, _ := json.Marshal(hex.EncodeToString(sum[:]))

	body := bytes.TrimSpace(raw)
	head := bytes.TrimSpace(body[:len(body)-1])

	out := make([]byte, 0, len(body)+len(field)+10)
	out = append(out, head...)
	if head[len(head)-1] != '{' {
		out = append(out, ',')
	}
	out = append(out, `"`+hashField+`":`...)
	out = append(out, field...)
	out = append(out, '}')
	return out, nil
}

// Verify reports whether payload carries hash produced by Sign with the secret.
// Any structural anomaly means not verified.
func Verify(raw []byte, secret string) bool {
	payload, received, err := canonicalize(raw)
	if err != nil || received == "" {
		return false
	}

	sum := sha256.Sum256([]byte(payload + secret))
	expected := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

type field struct {
	key   string
	value any
}

// canonicalize walks top level object keeping field order, which map decoding would lose.
// Order follows gateway's object enumeration: array index keys ascending, then other keys as received.
// A repeated key keeps its first position and its last value.
func canonicalize(raw []byte) (payload string, hash string, err error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", errMalformedCallback, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", "", fmt.Errorf("%w: object expected", errMalformedCallback)
	}

	var fields []field
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", errMalformedCallback, err)
		}
		key, ok := tok.(string)
		if !ok {
			return "", "", fmt.Errorf("%w: bad key", errMalformedCallback)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return "", "", fmt.Errorf("%w: %w", errMalformedCallback, err)
		}

		if i, ok := seen[key]; ok {
			fields[i].value = value
			continue
		}
		seen[key] = len(fields)
		fields = append(fields, field{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return "", "", fmt.Errorf("%w: %w", errMalformedCallback, err)
	}
	if _, err := dec.Token(); err == nil {
		return "", "", fmt.Errorf("%w: trailing data", errMalformedCallback)
	}

	slices.SortStableFunc(fields, func(a, b field) int {
		ai, aIndex := arrayIndex(a.key)
		bi, bIndex := arrayIndex(b.key)
		switch {
		case aIndex && bIndex:
			return cmp.Compare(ai, bi)
		case aIndex:
			return -1
		case bIndex:
			return 1
		default:
			return 0
		}
	})

	var b strings.Builder
	for _, f := range fields {
		if f.key == hashField {
			s, ok := f.value.(string)
			if !ok {
				return "", "", fmt.Errorf("%w: hash must be string", errMalformedCallback)
			}
			hash = s
			continue
		}

		s, err := stringify(f.value)
		if err != nil {
			return "", "", fmt.Errorf("%w: field %q: %w", errMalformedCallback, f.key, err)
		}
		b.WriteString(s)
	}

	return b.String(), hash, nil
}

// arrayIndex reports whether key is canonical decimal form of uint32 below 2^32-1
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return n, true
}

// stringify renders value the way gateway concatenates it when signing
func stringify(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil || math.IsInf(f, 0) {
			return "", fmt.Errorf("unsupported number %s", v)
		}
		return formatNumber(f), nil
	case map[string]any:
		return "[object Object]", nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				parts = append(parts, "")
				continue
			}
			s, err := stringify(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", errors.New("null value")
	}
}

// formatNumber renders float the way gateway's number to string conversion does:
// shortest round trip digits, exponent form outside [1e-6, 1e21).
func formatNumber(f float64) string {
	abs := math.Abs(f)
	switch {
	case f == 0:
		return "0"
	case abs >= 1e-6 && abs < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	// Go pads exponent to two digits: 1e-07, gateway does not
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}
