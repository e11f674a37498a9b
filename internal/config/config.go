// Package config loads relay settings from defaults, an optional config
// file, MCSRELAY_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	FileName  = "mcsrelay"
	EnvPrefix = "MCSRELAY"
)

// Keys, also used as flag bindings.
const (
	KeyServerPort                 = "server.port"
	KeyServerPath                 = "server.path"
	KeyServerConnectionTimeout    = "server.connection-timeout"
	KeyServerMaxMessageBytes      = "server.max-message-bytes"
	KeyServerMaxMessagesPerSecond = "server.max-messages-per-second"
	KeyUpstreamAddress            = "upstream.address"
	KeyUpstreamPort               = "upstream.port"
	KeyUpstreamSecure             = "upstream.secure"
	KeyUpstreamConnectTimeout     = "upstream.connect-timeout"
	KeyUpstreamResponseTimeout    = "upstream.response-timeout"
	KeyExitTimeout                = "exit-timeout"
	KeyLogLevel                   = "log.level"
	KeyLogFormat                  = "log.format"
)

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Upstream    UpstreamConfig `mapstructure:"upstream"`
	ExitTimeout time.Duration  `mapstructure:"exit-timeout"`
	Log         LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port                 int           `mapstructure:"port"`
	Path                 string        `mapstructure:"path"`
	ConnectionTimeout    time.Duration `mapstructure:"connection-timeout"`
	MaxMessageBytes      int64         `mapstructure:"max-message-bytes"`
	MaxMessagesPerSecond int           `mapstructure:"max-messages-per-second"`
}

// UpstreamConfig locates the media control server.
type UpstreamConfig struct {
	Address         string        `mapstructure:"address"`
	Port            int           `mapstructure:"port"`
	Secure          bool          `mapstructure:"secure"`
	ConnectTimeout  time.Duration `mapstructure:"connect-timeout"`
	ResponseTimeout time.Duration `mapstructure:"response-timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                 3010,
			Path:                 "/mcs",
			ConnectionTimeout:    time.Second,
			MaxMessageBytes:      64 * 1024,
			MaxMessagesPerSecond: 50,
		},
		Upstream: UpstreamConfig{
			Address:         "127.0.0.1",
			Port:            3010,
			ConnectTimeout:  5 * time.Second,
			ResponseTimeout: 15 * time.Second,
		},
		ExitTimeout: 5 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
	}
}

// SetDefaults registers every key with its default so that environment
// variables are picked up on Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyServerPort, d.Server.Port)
	v.SetDefault(KeyServerPath, d.Server.Path)
	v.SetDefault(KeyServerConnectionTimeout, d.Server.ConnectionTimeout)
	v.SetDefault(KeyServerMaxMessageBytes, d.Server.MaxMessageBytes)
	v.SetDefault(KeyServerMaxMessagesPerSecond, d.Server.MaxMessagesPerSecond)
	v.SetDefault(KeyUpstreamAddress, d.Upstream.Address)
	v.SetDefault(KeyUpstreamPort, d.Upstream.Port)
	v.SetDefault(KeyUpstreamSecure, d.Upstream.Secure)
	v.SetDefault(KeyUpstreamConnectTimeout, d.Upstream.ConnectTimeout)
	v.SetDefault(KeyUpstreamResponseTimeout, d.Upstream.ResponseTimeout)
	v.SetDefault(KeyExitTimeout, d.ExitTimeout)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
}

// Load reads mcsrelay.{yaml,toml,json} from configDir when present, applies
// the environment and returns the validated result. Flags must already be
// bound to v.
func Load(v *viper.Viper, configDir string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigName(FileName)
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s: %d out of range", KeyServerPort, c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("%s: %q must start with /", KeyServerPath, c.Server.Path))
	}
	if c.Server.ConnectionTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", KeyServerConnectionTimeout))
	}
	if c.Server.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", KeyServerMaxMessageBytes))
	}
	if c.Server.MaxMessagesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", KeyServerMaxMessagesPerSecond))
	}
	if c.Upstream.Address == "" {
		errs = append(errs, fmt.Errorf("%s: required", KeyUpstreamAddress))
	}
	if c.Upstream.Port <= 0 || c.Upstream.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s: %d out of range", KeyUpstreamPort, c.Upstream.Port))
	}
	if c.Upstream.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s: must be positive", KeyUpstreamConnectTimeout))
	}
	if c.Upstream.ResponseTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", KeyUpstreamResponseTimeout))
	}
	if c.ExitTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", KeyExitTimeout))
	}
	switch c.Log.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown format %q", KeyLogFormat, c.Log.Format))
	}
	return errors.Join(errs...)
}
