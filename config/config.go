package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config/config.yml"

	ExecutionModeREST      = "rest"
	ExecutionModeWebsocket = "websocket"
)

var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Logging    LoggingConfig    `yaml:"logging"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Status     StatusConfig     `yaml:"status"`
	Exchanges  ExchangesConfig  `yaml:"exchanges"`
}

type ServiceConfig struct {
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	Dashboard       string `yaml:"dashboard"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ChannelsConfig struct {
	EventBuffer int `yaml:"event_buffer"`
}

type StatusConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"`
	History        int           `yaml:"history"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// ExchangeConfig holds connection and execution settings for one exchange.
type ExchangeConfig struct {
	Enabled        bool            `yaml:"enabled"`
	WebsocketURL   string          `yaml:"url_ws"`
	RestURL        string          `yaml:"url_rest"`
	ExecutionMode  string          `yaml:"execution_mode"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	ReconnectDelay time.Duration   `yaml:"reconnect_delay"`
	PingInterval   time.Duration   `yaml:"ping_interval"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Testnet        bool            `yaml:"testnet"`
	Assets         map[string]int  `yaml:"assets"`
	ResolveAssets  bool            `yaml:"resolve_assets"`
}

type ExchangesConfig struct {
	Hyperliquid ExchangeConfig `yaml:"hyperliquid"`
	Okx         ExchangeConfig `yaml:"okx"`
}

// Enabled returns the enabled exchanges keyed by name.
func (c ExchangesConfig) Enabled() map[string]ExchangeConfig {
	out := map[string]ExchangeConfig{}
	if c.Hyperliquid.Enabled {
		out["hyperliquid"] = c.Hyperliquid
	}
	if c.Okx.Enabled {
		out["okx"] = c.Okx
	}
	return out
}

// EnabledNames returns the enabled exchange names in sorted order.
func (c ExchangesConfig) EnabledNames() []string {
	enabled := c.Enabled()
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultExchange(ws, rest string) ExchangeConfig {
	return ExchangeConfig{
		WebsocketURL:   ws,
		RestURL:        rest,
		ExecutionMode:  ExecutionModeREST,
		RequestTimeout: 10 * time.Second,
		ReconnectDelay: 5 * time.Second,
		PingInterval:   20 * time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
		},
	}
}

func defaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			Name:           "tradebridge",
			ReportInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Channels: ChannelsConfig{EventBuffer: 1024},
		Status: StatusConfig{
			Address:        "0.0.0.0:8080",
			History:        200,
			SampleInterval: 5 * time.Second,
		},
		Exchanges: ExchangesConfig{
			Hyperliquid: defaultExchange("wss://api.hyperliquid.xyz/ws", "https://api.hyperliquid.xyz"),
			Okx:         defaultExchange("wss://ws.okx.com:8443/ws/v5/public", "https://www.okx.com"),
		},
	}
}

// ResolvePath returns the configuration file for the current APP_ENV.
func ResolvePath(path string) string {
	return resolveEnvSpecificPath(path, defaultConfigPath, envConfigPaths)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.CloudWatch.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}

	if cfg.Service.Version == "" {
		return fmt.Errorf("service.version is required")
	}

	if cfg.Channels.EventBuffer <= 0 {
		return fmt.Errorf("channels.event_buffer must be greater than 0")
	}

	enabled := cfg.Exchanges.Enabled()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one exchange must be enabled")
	}

	for name, ex := range enabled {
		if err := validateExchange(name, ex); err != nil {
			return err
		}
	}

	return nil
}

func validateExchange(name string, ex ExchangeConfig) error {
	if err := validateURL(ex.WebsocketURL, "ws", "wss"); err != nil {
		return fmt.Errorf("exchanges.%s.url_ws: %w", name, err)
	}
	if err := validateURL(ex.RestURL, "http", "https"); err != nil {
		return fmt.Errorf("exchanges.%s.url_rest: %w", name, err)
	}

	switch ex.ExecutionMode {
	case ExecutionModeREST:
	case ExecutionModeWebsocket:
		if name != "hyperliquid" {
			return fmt.Errorf("exchanges.%s.execution_mode websocket is not supported", name)
		}
	default:
		return fmt.Errorf("exchanges.%s.execution_mode '%s' is invalid", name, ex.ExecutionMode)
	}

	if ex.RequestTimeout <= 0 {
		return fmt.Errorf("exchanges.%s.request_timeout must be greater than 0", name)
	}
	if ex.ReconnectDelay <= 0 {
		return fmt.Errorf("exchanges.%s.reconnect_delay must be greater than 0", name)
	}
	if ex.RateLimit.RequestsPerSecond <= 0 || ex.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("exchanges.%s.rate_limit must be positive", name)
	}
	for coin, index := range ex.Assets {
		if index < 0 {
			return fmt.Errorf("exchanges.%s.assets.%s must not be negative", name, coin)
		}
	}

	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("'%s' has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("'%s' must use one of %v", raw, schemes)
}

// LoadCredentials collects the named secrets of an exchange from the
// environment. Every variable prefixed with <EXCHANGE>_API_ is returned.
func LoadCredentials(exchange string) map[string]string {
	prefix := strings.ToUpper(exchange) + "_API_"
	out := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			out[key] = value
		}
	}
	return out
}
