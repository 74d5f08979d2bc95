package config

import "time"

const (
	DefaultGatewayBaseURL     = "https://sandbox.safaricom.co.ke"
	DefaultTransactionType    = "CustomerPayBillOnline"
	DefaultGatewayTimeout     = 30 * time.Second
	DefaultTokenRefreshMargin = 60 * time.Second
)

// GatewayConfig holds the push-payment gateway credentials.
type GatewayConfig struct {
	BaseURL         string        `yaml:"base_url"`
	ConsumerKey     string        `yaml:"consumer_key"`
	ConsumerSecret  string        `yaml:"consumer_secret"`
	Shortcode       string        `yaml:"shortcode"`
	Passkey         string        `yaml:"passkey"`
	CallbackBaseURL string        `yaml:"callback_base_url"`
	TransactionType string        `yaml:"transaction_type"`
	Timeout         time.Duration `yaml:"timeout"`
	// TokenRefreshMargin renews cached access tokens this long before expiry.
	TokenRefreshMargin time.Duration `yaml:"token_refresh_margin"`
	// TokenCache is memory or redis.
	TokenCache string `yaml:"token_cache"`
}

func (c *GatewayConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultGatewayBaseURL
	}
	if c.TransactionType == "" {
		c.TransactionType = DefaultTransactionType
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultGatewayTimeout
	}
	if c.TokenRefreshMargin == 0 {
		c.TokenRefreshMargin = DefaultTokenRefreshMargin
	}
	if c.TokenCache == "" {
		c.TokenCache = "memory"
	}
}

const (
	EventsDriverNoop  = "noop"
	EventsDriverRedis = "redis"
	EventsDriverKafka = "kafka"
)

// EventsConfig selects where payment status events are published.
type EventsConfig struct {
	Driver  string   `yaml:"driver"`
	Channel string   `yaml:"channel"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (c *EventsConfig) applyDefaults() {
	if c.Driver == "" {
		c.Driver = EventsDriverNoop
	}
	if c.Channel == "" {
		c.Channel = "payments.status"
	}
	if c.Topic == "" {
		c.Topic = "payments.status"
	}
}
