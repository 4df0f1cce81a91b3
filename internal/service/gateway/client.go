package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/logger"
)

const (
	chargePath = "/api/v1/gateway/request-qrcode"
	payoutPath = "/api/v1/gateway/pix-payment"

	// Gateway may accept payout without returning its id. Transaction then settles by callback only.
	PendingID = "PENDING"

	DefaultTimeout   = 15 * time.Second
	DefaultPayerName = "PIX Wallet User"
	DefaultKeyType   = "RANDOM_KEY"
)

// Operations reported to observer
const (
	OpCreateCharge = "create_charge"
	OpCreatePayout = "create_payout"
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// Absolute url gateway posts transaction status changes to
	CallbackURL string

	PayerName string
	Timeout   time.Duration
}

// Error returned by every failed gateway call
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s failed", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ", status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Charge struct {
	GatewayID        string
	PaymentCode      string
	PaymentCodeImage string
}

type Payout struct {
	Amount   decimal.Decimal
	Key      string
	KeyType  string
	Name     string
	Document string
}

// Observer receives latency of every gateway call
type Observer interface {
	ObserveGatewayCall(operation string, err error, took time.Duration)
}

type Client struct {
	cfg      Config
	client   *resty.Client
	logger   logger.Logger
	observer Observer

	now func() time.Time
}

func NewClient(cfg Config, l logger.Logger, observer Observer) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PayerName == "" {
		cfg.PayerName = DefaultPayerName
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("ci", cfg.ClientID).
		SetHeader("cs", cfg.ClientSecret)

	return &Client{
		cfg:      cfg,
		client:   client,
		logger:   l.WithGroup("gateway"),
		observer: observer,
		now:      time.Now,
	}
}

type payer struct {
	Name     string `json:"name"`
	Document string `json:"document"`
}

type chargeRequest struct {
	RequestNumber string      `json:"requestNumber"`
	DueDate       string      `json:"dueDate"`
	Amount        json.Number `json:"amount"`
	CallbackURL   string      `json:"callbackUrl"`
	Client        payer       `json:"client"`
}

type chargeResponse struct {
	IDTransaction     string `json:"idTransaction"`
	PaymentCode       string `json:"paymentCode"`
	PaymentCodeBase64 string `json:"paymentCodeBase64"`
}

type payoutRequest struct {
	Value       json.Number `json:"value"`
	Key         string      `json:"key"`
	TypeKey     string      `json:"typeKey"`
	CallbackURL string      `json:"callbackUrl"`
	Document    string      `json:"document,omitempty"`
	Name        string      `json:"name,omitempty"`
}

type payoutResponse struct {
	IDTransaction string `json:"idTransaction"`
}

type errorResponse struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

func (r errorResponse) text(statusCode int) string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Response != "":
		return r.Response
	default:
		return http.StatusText(statusCode)
	}
}

// CreateCharge requests dynamic PIX charge for the amount
func (c *Client) CreateCharge(ctx context.Context, amount decimal.Decimal) (charge Charge, err error) {
	defer c.observe(OpCreateCharge, c.now(), &err)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := chargeRequest{
		RequestNumber: uuid.NewString(),
		DueDate:       c.now().AddDate(0, 0, 1).Format(time.DateOnly),
		Amount:        json.Number(amount.StringFixed(2)),
		CallbackURL:   c.cfg.CallbackURL,
		Client: payer{
			Name:     c.cfg.PayerName,
			Document: GenerateCPF(),
		},
	}

	var result chargeResponse
	var apiErr errorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(chargePath)
	if err != nil {
		c.logger.Warn("Charge request failed", "error", err)
		return charge, &Error{Op: OpCreateCharge, Message: "failed to send request", Err: err}
	}
	if resp.IsError() {
		c.logger.Warn("Charge rejected", "status_code", resp.StatusCode(), "body", resp.String())
		return charge, &Error{Op: OpCreateCharge, StatusCode: resp.StatusCode(), Message: apiErr.text(resp.StatusCode())}
	}
	if result.IDTransaction == "" || result.PaymentCode == "" {
		c.logger.Warn("Charge response incomplete", "status_code", resp.StatusCode(), "body", resp.String())
		return charge, &Error{Op: OpCreateCharge, StatusCode: resp.StatusCode(), Message: "failed to generate PIX code"}
	}

	c.logger.Debug("Charge created", "gateway_id", result.IDTransaction, "amount", amount)
	return Charge{
		GatewayID:        result.IDTransaction,
		PaymentCode:      result.PaymentCode,
		PaymentCodeImage: result.PaymentCodeBase64,
	}, nil
}

// CreatePayout requests PIX transfer of the payout amount to the key.
// Returns gateway transaction id or PendingID when the gateway accepted payout without id.
func (c *Client) CreatePayout(ctx context.Context, p Payout) (gatewayID string, err error) {
	defer c.observe(OpCreatePayout, c.now(), &err)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	keyType := p.KeyType
	if keyType == "" {
		keyType = DefaultKeyType
	}

	body := payoutRequest{
		Value:       json.Number(p.Amount.StringFixed(2)),
		Key:         p.Key,
		TypeKey:     keyType,
		CallbackURL: c.cfg.CallbackURL,
		Document:    p.Document,
		Name:        p.Name,
	}

	var result payoutResponse
	var apiErr errorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(payoutPath)
	if err != nil {
		c.logger.Warn("Payout request failed", "error", err)
		return "", &Error{Op: OpCreatePayout, Message: "failed to send request", Err: err}
	}
	if resp.IsError() {
		c.logger.Warn("Payout rejected", "status_code", resp.StatusCode(), "body", resp.String())
		return "", &Error{Op: OpCreatePayout, StatusCode: resp.StatusCode(), Message: apiErr.text(resp.StatusCode())}
	}

	switch {
	case result.IDTransaction != "":
		c.logger.Debug("Payout created", "gateway_id", result.IDTransaction, "amount", p.Amount)
		return result.IDTransaction, nil
	case resp.StatusCode() == http.StatusOK:
		return PendingID, nil
	default:
		c.logger.Warn("Payout response incomplete", "status_code", resp.StatusCode(), "body", resp.String())
		return "", &Error{Op: OpCreatePayout, StatusCode: resp.StatusCode(), Message: "failed to request withdrawal"}
	}
}

// VerifyCallback checks callback body hash was produced with the client secret
func (c *Client) VerifyCallback(raw []byte) bool {
	return Verify(raw, c.cfg.ClientSecret)
}

func (c *Client) observe(op string, started time.Time, err *error) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveGatewayCall(op, *err, c.now().Sub(started))
}

// Reason extracts failure description suitable for the user
func Reason(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return "payment gateway request failed"
}
