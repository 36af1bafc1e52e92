package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Phoenixd   PhoenixdConfig   `mapstructure:"phoenixd"`
	Reconnect  ReconnectConfig  `mapstructure:"reconnect"`
	Hub        HubConfig        `mapstructure:"hub"`
	PaymentLog PaymentLogConfig `mapstructure:"paymentlog"`
	AMQP       AMQPConfig       `mapstructure:"amqp"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	WSPath            string        `mapstructure:"ws_path"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	WSToken           string        `mapstructure:"ws_token"` // guards /ws and every /api route; empty keeps them open, as on a trusted LAN
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
}

type PhoenixdConfig struct {
	URL             string        `mapstructure:"url"`
	Password        string        `mapstructure:"password"`
	WebSocketPath   string        `mapstructure:"ws_path"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DecodeCacheSize int           `mapstructure:"decode_cache_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongWait        time.Duration `mapstructure:"pong_wait"` // silence longer than this drops the feed
}

// WebSocketURL derives the event feed endpoint from the REST base URL.
func (c PhoenixdConfig) WebSocketURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("phoenixd url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("phoenixd url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.WebSocketPath
	return u.String(), nil
}

type ReconnectConfig struct {
	Delay      time.Duration `mapstructure:"delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"` // zero keeps the fixed delay
	Multiplier float64       `mapstructure:"multiplier"`
}

type HubConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type PaymentLogConfig struct {
	DSN string `mapstructure:"dsn"` // sqlite path, sqlite:// or postgres:// URL; empty disables
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type BreakerConfig struct {
	MaxFailures      uint32        `mapstructure:"max_failures"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Phoenixd.Password == "" {
		errs = append(errs, errors.New("phoenixd.password is required"))
	}
	if _, err := c.Phoenixd.WebSocketURL(); err != nil {
		errs = append(errs, err)
	}
	if c.Reconnect.Delay <= 0 {
		errs = append(errs, errors.New("reconnect.delay must be positive"))
	}
	if c.Reconnect.MaxDelay != 0 && c.Reconnect.MaxDelay < c.Reconnect.Delay {
		errs = append(errs, errors.New("reconnect.max_delay must not be below reconnect.delay"))
	}
	if c.Hub.BufferSize <= 0 {
		errs = append(errs, errors.New("hub.buffer_size must be positive"))
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		errs = append(errs, errors.New("server.ws_path must start with /"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	return errors.Join(errs...)
}
