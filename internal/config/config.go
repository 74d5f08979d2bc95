package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	pkgconfig "github.com/wekeepgrowing/hospital-payment/pkg/config"
)

// ServiceName selects configs/<env>/payment.yaml and the PAYMENT_ env prefix.
const ServiceName = "payment"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Events   EventsConfig   `yaml:"events"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

// LoadConfig reads the payment config file and environment overrides,
// applies defaults and validates the result.
func LoadConfig() (*Config, error) {
	raw, err := pkgconfig.Load(ServiceName)
	if err != nil {
		return nil, err
	}
	return FromSource(raw)
}

// FromSource decodes an already loaded configuration source.
func FromSource(raw pkgconfig.Config) (*Config, error) {
	var cfg Config
	if err := raw.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = ServiceName
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "dev"
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Server.HTTP.ShutdownTimeout == 0 {
		c.Server.HTTP.ShutdownTimeout = 10 * time.Second
	}
	c.Gateway.applyDefaults()
	c.Events.applyDefaults()
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate fails when settings the service cannot start without are absent.
func (c *Config) Validate() error {
	var missing []string
	for key, val := range map[string]string{
		"gateway.consumer_key":      c.Gateway.ConsumerKey,
		"gateway.consumer_secret":   c.Gateway.ConsumerSecret,
		"gateway.shortcode":         c.Gateway.Shortcode,
		"gateway.passkey":           c.Gateway.Passkey,
		"gateway.callback_base_url": c.Gateway.CallbackBaseURL,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Events.Driver {
	case EventsDriverNoop, EventsDriverRedis, EventsDriverKafka:
	default:
		return fmt.Errorf("unsupported events driver %q", c.Events.Driver)
	}
	if c.Events.Driver == EventsDriverKafka && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers is required for the kafka driver")
	}
	switch c.Gateway.TokenCache {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported gateway.token_cache %q", c.Gateway.TokenCache)
	}
	if !c.Redis.Enabled() && (c.Events.Driver == EventsDriverRedis || c.Gateway.TokenCache == "redis") {
		return fmt.Errorf("redis.addr is required for the redis events driver and token cache")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	return nil
}
