package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "DASHBOARD"

// Flag names double as viper keys so a bound flag overrides the same setting
// from file or environment.
const (
	FlagServerAddr  = "server.addr"
	FlagPhoenixdURL = "phoenixd.url"
	FlagLogLevel    = "log.level"
)

// FlagSet returns the command-line overrides understood by the loader.
func FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("dashboard", pflag.ContinueOnError)
	fs.String(FlagServerAddr, "", "listen address of the dashboard server")
	fs.String(FlagPhoenixdURL, "", "base URL of the phoenixd REST API")
	fs.String(FlagLogLevel, "", "log level (debug, info, warn, error)")
	return fs
}

// Loader reads configuration from defaults, an optional file, DASHBOARD_* env
// vars and flags, in increasing order of precedence.
type Loader struct {
	v *viper.Viper
}

func NewLoader(file string, flags *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	return &Loader{v: v}, nil
}

// Load decodes and validates the current configuration.
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and hands valid results to fn.
// It is a no-op when no file was given.
func (l *Loader) Watch(fn func(*Config, error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(l.Load())
	})
	l.v.WatchConfig()
}

// LoadConfig is the one-shot form used by commands that do not hot-reload.
func LoadConfig(file string, flags *pflag.FlagSet) (*Config, error) {
	l, err := NewLoader(file, flags)
	if err != nil {
		return nil, err
	}
	return l.Load()
}
