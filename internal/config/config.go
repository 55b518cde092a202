// Package config loads the service configuration from the environment. A
// .env file, when present, is loaded first; variables already set in the
// environment win.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

type Config struct {
	Server        ServerConfig
	Log           LogConfig
	Tracing       TracingConfig
	Redis         RedisConfig
	GenericWallet GenericWalletConfig
	DeviceWallet  DeviceWalletConfig
	Merchant      MerchantConfig
	Breaker       BreakerConfig
	Polling       PollingConfig
	Probes        ProbeConfig

	// CheckoutSchemaPath replaces the built-in pay request schema when set.
	CheckoutSchemaPath string
	// AckTimeout bounds one custom sheet acknowledgment.
	AckTimeout time.Duration
	// InitialReadiness is shown until the first probe answers.
	InitialReadiness map[payment.Provider]payment.Readiness
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// RedisConfig enables the Redis outcome journal when Addr is set.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Key        string
	MaxEntries int64
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// GenericWalletConfig configures the generic wallet gateway. With no
// GatewayURL the service runs against an in-process simulator.
type GenericWalletConfig struct {
	GatewayURL        string
	APIKey            string
	Gateway           string
	GatewayMerchantID string
}

// DeviceWalletConfig configures the device wallet gateway. With no
// GatewayURL the service runs against an in-process simulator.
type DeviceWalletConfig struct {
	GatewayURL string
	APIKey     string
	ServiceID  string
}

type MerchantConfig struct {
	ID              string
	Name            string
	CountryCode     string
	DefaultCurrency string
	OrderPrefix     string
}

type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

type PollingConfig struct {
	Interval       time.Duration
	MaxErrors      int
	RequestTimeout time.Duration
}

// ProbeConfig limits readiness probes requested over HTTP and optionally
// re-probes every provider on a cron schedule ("@every 5m", "*/10 * * * *").
type ProbeConfig struct {
	MinInterval time.Duration
	Schedule    string
}

var defaults = map[string]interface{}{
	"server_addr":             ":8080",
	"server_shutdown_timeout": 10 * time.Second,

	"log_level":  "info",
	"log_format": "json",

	"tracing_enabled":      false,
	"tracing_service_name": "wallet-checkout",

	"redis_addr":        "",
	"redis_password":    "",
	"redis_db":          0,
	"redis_journal_key": "wallet-checkout:outcomes",
	"redis_max_entries": 10000,

	"generic_wallet_gateway_url":         "",
	"generic_wallet_api_key":             "",
	"generic_wallet_gateway":             "example",
	"generic_wallet_gateway_merchant_id": "exampleGatewayMerchantId",

	"device_wallet_gateway_url": "",
	"device_wallet_api_key":     "",
	"device_wallet_service_id":  "sample-service-id",

	"merchant_id":               "sample-merchant",
	"merchant_name":             "Sample Merchant",
	"merchant_country_code":     "US",
	"merchant_default_currency": "USD",
	"merchant_order_prefix":     "AMZ",

	"breaker_failure_threshold": 3,
	"breaker_reset_timeout":     30 * time.Second,

	"poll_interval":        500 * time.Millisecond,
	"poll_max_errors":      3,
	"http_request_timeout": 10 * time.Second,

	"sheet_ack_timeout":    10 * time.Second,
	"checkout_schema_path": "",

	"probe_min_interval":       time.Second,
	"readiness_probe_schedule": "",

	"initial_readiness_generic_wallet": payment.ReadinessUnknown.String(),
	"initial_readiness_device_wallet":  payment.Ready.String(),
}

// Load reads .env files (default ".env"; missing files are ignored) and the
// environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server_addr"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: strings.ToLower(v.GetString("log_format")),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing_enabled"),
			ServiceName: v.GetString("tracing_service_name"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("redis_addr"),
			Password:   v.GetString("redis_password"),
			DB:         v.GetInt("redis_db"),
			Key:        v.GetString("redis_journal_key"),
			MaxEntries: v.GetInt64("redis_max_entries"),
		},
		GenericWallet: GenericWalletConfig{
			GatewayURL:        v.GetString("generic_wallet_gateway_url"),
			APIKey:            v.GetString("generic_wallet_api_key"),
			Gateway:           v.GetString("generic_wallet_gateway"),
			GatewayMerchantID: v.GetString("generic_wallet_gateway_merchant_id"),
		},
		DeviceWallet: DeviceWalletConfig{
			GatewayURL: v.GetString("device_wallet_gateway_url"),
			APIKey:     v.GetString("device_wallet_api_key"),
			ServiceID:  strings.TrimSpace(v.GetString("device_wallet_service_id")),
		},
		Merchant: MerchantConfig{
			ID:              v.GetString("merchant_id"),
			Name:            v.GetString("merchant_name"),
			CountryCode:     strings.ToUpper(v.GetString("merchant_country_code")),
			DefaultCurrency: strings.ToUpper(v.GetString("merchant_default_currency")),
			OrderPrefix:     v.GetString("merchant_order_prefix"),
		},
		Breaker: BreakerConfig{
			FailureThreshold: v.GetInt("breaker_failure_threshold"),
			ResetTimeout:     v.GetDuration("breaker_reset_timeout"),
		},
		Polling: PollingConfig{
			Interval:       v.GetDuration("poll_interval"),
			MaxErrors:      v.GetInt("poll_max_errors"),
			RequestTimeout: v.GetDuration("http_request_timeout"),
		},
		Probes: ProbeConfig{
			MinInterval: v.GetDuration("probe_min_interval"),
			Schedule:    strings.TrimSpace(v.GetString("readiness_probe_schedule")),
		},
		CheckoutSchemaPath: strings.TrimSpace(v.GetString("checkout_schema_path")),
		AckTimeout:         v.GetDuration("sheet_ack_timeout"),
		InitialReadiness:   make(map[payment.Provider]payment.Readiness, len(payment.Providers)),
	}

	for _, p := range payment.Providers {
		key := "initial_readiness_" + p.String()
		r, err := payment.ParseReadiness(v.GetString(key))
		if err != nil {
			return nil, errors.Wrapf(err, "config: %s", strings.ToUpper(key))
		}
		cfg.InitialReadiness[p] = r
	}

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Merchant.ID == "" || c.Merchant.Name == "" {
		return errors.New("MERCHANT_ID and MERCHANT_NAME are required")
	}
	if _, err := payment.NormalizeCurrency(c.Merchant.DefaultCurrency); err != nil {
		return errors.Wrap(err, "MERCHANT_DEFAULT_CURRENCY")
	}
	if c.GenericWallet.Gateway == "" || c.GenericWallet.GatewayMerchantID == "" {
		return errors.New("GENERIC_WALLET_GATEWAY and GENERIC_WALLET_GATEWAY_MERCHANT_ID are required")
	}
	if c.DeviceWallet.ServiceID == "" {
		return errors.New("DEVICE_WALLET_SERVICE_ID is required")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return errors.New("BREAKER_FAILURE_THRESHOLD must be positive")
	}
	if c.Polling.Interval <= 0 || c.Polling.MaxErrors <= 0 {
		return errors.New("POLL_INTERVAL and POLL_MAX_ERRORS must be positive")
	}
	if c.AckTimeout <= 0 {
		return errors.New("SHEET_ACK_TIMEOUT must be positive")
	}
	if c.Probes.MinInterval < 0 {
		return errors.New("PROBE_MIN_INTERVAL must not be negative")
	}
	if c.Probes.Schedule != "" {
		if _, err := cron.ParseStandard(c.Probes.Schedule); err != nil {
			return errors.Wrap(err, "READINESS_PROBE_SCHEDULE")
		}
	}
	if c.Redis.Enabled() && c.Redis.Key == "" {
		return errors.New("REDIS_JOURNAL_KEY is required when REDIS_ADDR is set")
	}
	return nil
}
