package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/service/fee"
	"github.com/nkiryanov/pixwallet/internal/service/gateway"
	"github.com/nkiryanov/pixwallet/internal/service/outbox"
	"github.com/nkiryanov/pixwallet/internal/service/outbox/kafka"
	"github.com/nkiryanov/pixwallet/internal/service/withdrawal"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultGatewayURL   = "https://ws.suitpay.app"
	defaultAppURL       = "http://localhost:8000"
)

// Path gateway posts status callbacks to, relative to AppURL
const callbackPath = "/api/webhook/suitpay"

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the wallet service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// Payment gateway address and credentials.
	// Client secret also signs callbacks.
	GatewayURL          string
	GatewayClientID     string
	GatewayClientSecret string
	GatewayTimeout      time.Duration

	// Public address of this service, callbacks are delivered there
	AppURL string

	DepositFeeRate        decimal.Decimal
	WithdrawalFeeRate     decimal.Decimal
	WithdrawalFixedFee    decimal.Decimal
	WithdrawalMinAmount   decimal.Decimal
	WithdrawalHourlyLimit decimal.Decimal

	// Ledger events go to Kafka when brokers set, to the log otherwise
	KafkaBrokers   []string
	KafkaTopic     string
	OutboxInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:              defaultLoggingLevel,
		ListenAddr:            defaultListenAddr,
		Environment:           defaultEnvironment,
		GatewayURL:            defaultGatewayURL,
		GatewayTimeout:        gateway.DefaultTimeout,
		AppURL:                defaultAppURL,
		DepositFeeRate:        fee.DefaultDepositRate,
		WithdrawalFeeRate:     fee.DefaultWithdrawalRate,
		WithdrawalFixedFee:    fee.DefaultWithdrawalFixed,
		WithdrawalMinAmount:   withdrawal.DefaultMinAmount,
		WithdrawalHourlyLimit: withdrawal.DefaultHourlyLimit,
		KafkaTopic:            kafka.DefaultTopic,
		OutboxInterval:        outbox.DefaultInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setValue := func(v pflag.Value) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			return v.Set(value)
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":             setString(&c.ListenAddr),
		"DATABASE_URI":            setString(&c.DatabaseDSN),
		"LOG_LEVEL":               setString(&c.LogLevel),
		"ENVIRONMENT":             setString(&c.Environment),
		"SUITPAY_URL":             setString(&c.GatewayURL),
		"SUITPAY_CI":              setString(&c.GatewayClientID),
		"SUITPAY_CS":              setString(&c.GatewayClientSecret),
		"APP_URL":                 setString(&c.AppURL),
		"KAFKA_TOPIC":             setString(&c.KafkaTopic),
		"GATEWAY_TIMEOUT":         setValue(&durationValue{&c.GatewayTimeout}),
		"OUTBOX_INTERVAL":         setValue(&durationValue{&c.OutboxInterval}),
		"KAFKA_BROKERS":           setValue(&listValue{&c.KafkaBrokers}),
		"DEPOSIT_FEE_RATE":        setValue(&decimalValue{&c.DepositFeeRate}),
		"WITHDRAWAL_FEE_RATE":     setValue(&decimalValue{&c.WithdrawalFeeRate}),
		"WITHDRAWAL_FIXED_FEE":    setValue(&decimalValue{&c.WithdrawalFixedFee}),
		"WITHDRAWAL_MIN_AMOUNT":   setValue(&decimalValue{&c.WithdrawalMinAmount}),
		"WITHDRAWAL_HOURLY_LIMIT": setValue(&decimalValue{&c.WithdrawalHourlyLimit}),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("pixwallet", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.GatewayURL, "gateway-url", "g", c.GatewayURL, "Payment gateway address")
	fs.StringVar(&c.GatewayClientID, "gateway-ci", c.GatewayClientID, "Payment gateway client id")
	fs.StringVar(&c.GatewayClientSecret, "gateway-cs", c.GatewayClientSecret, "Payment gateway client secret")
	fs.DurationVar(&c.GatewayTimeout, "gateway-timeout", c.GatewayTimeout, "Payment gateway request timeout")
	fs.StringVarP(&c.AppURL, "app-url", "u", c.AppURL, "Public service address gateway sends callbacks to")
	fs.Var(&decimalValue{&c.DepositFeeRate}, "deposit-fee-rate", "Deposit fee rate")
	fs.Var(&decimalValue{&c.WithdrawalFeeRate}, "withdrawal-fee-rate", "Withdrawal fee rate")
	fs.Var(&decimalValue{&c.WithdrawalFixedFee}, "withdrawal-fixed-fee", "Withdrawal fixed fee")
	fs.Var(&decimalValue{&c.WithdrawalMinAmount}, "withdrawal-min-amount", "Minimal withdrawal amount")
	fs.Var(&decimalValue{&c.WithdrawalHourlyLimit}, "withdrawal-hourly-limit", "Withdrawal amount allowed per hour")
	fs.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka brokers for ledger events (comma separated)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", c.KafkaTopic, "Kafka topic for ledger events")
	fs.DurationVar(&c.OutboxInterval, "outbox-interval", c.OutboxInterval, "How often ledger events are relayed")

	return fs.Parse(args)
}

// Validate checks options the service can't start without
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.GatewayClientID == "" || c.GatewayClientSecret == "" {
		errs = append(errs, errors.New("gateway client id and secret are required"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("gateway timeout must be positive"))
	}

	for name, rate := range map[string]decimal.Decimal{
		"deposit fee rate":    c.DepositFeeRate,
		"withdrawal fee rate": c.WithdrawalFeeRate,
	} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1), got %s", name, rate))
		}
	}
	if c.WithdrawalFixedFee.IsNegative() {
		errs = append(errs, errors.New("withdrawal fixed fee must not be negative"))
	}
	if !c.WithdrawalMinAmount.IsPositive() || !c.WithdrawalHourlyLimit.IsPositive() {
		errs = append(errs, errors.New("withdrawal min amount and hourly limit must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.AppURL, "/") + callbackPath
}

func (c *Config) FeePolicy() fee.Policy {
	return fee.Policy{
		DepositRate:     c.DepositFeeRate,
		WithdrawalRate:  c.WithdrawalFeeRate,
		WithdrawalFixed: c.WithdrawalFixedFee,
	}
}

type decimalValue struct {
	d *decimal.Decimal
}

func (v *decimalValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v *decimalValue) Set(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func (v *decimalValue) Type() string { return "decimal" }

type durationValue struct {
	d *time.Duration
}

func (v *durationValue) String() string { return v.d.String() }

func (v *durationValue) Set(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func (v *durationValue) Type() string { return "duration" }

type listValue struct {
	l *[]string
}

func (v *listValue) String() string { return strings.Join(*v.l, ",") }

func (v *listValue) Set(s string) error {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*v.l = items
	return nil
}

func (v *listValue) Type() string { return "list" }
