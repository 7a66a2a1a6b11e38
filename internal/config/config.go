package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envPrefix = "NOWPLAYING"
	appName   = "nowplaying"

	KeyPollInterval    = "watch.poll_interval"
	KeyLogLevel        = "log.level"
	KeyLogMode         = "log.mode"
	KeyRetryInitial    = "retry.initial_interval"
	KeyRetryMax        = "retry.max_interval"
	KeyRetryMaxElapsed = "retry.max_elapsed"

	ModeProduction  = "production"
	ModeDevelopment = "development"
)

var _ domain.Config = (*AppConfig)(nil)

// AppConfig holds application configuration
type AppConfig struct {
	file         string
	pollInterval time.Duration
	logLevel     zapcore.Level
	logMode      string
	retry        domain.RetryPolicy
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPollInterval, time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogMode, ModeProduction)
	v.SetDefault(KeyRetryInitial, time.Second)
	v.SetDefault(KeyRetryMax, 30*time.Second)
	v.SetDefault(KeyRetryMaxElapsed, time.Duration(0))
}

// Load reads configuration from defaults, an optional YAML file and
// NOWPLAYING_* environment variables, in increasing precedence.
// An empty path searches the user config directory and the working
// directory; a missing file is only an error when path is explicit.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appName))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		file:         v.ConfigFileUsed(),
		pollInterval: v.GetDuration(KeyPollInterval),
		logMode:      strings.ToLower(v.GetString(KeyLogMode)),
		retry: domain.RetryPolicy{
			InitialInterval: v.GetDuration(KeyRetryInitial),
			MaxInterval:     v.GetDuration(KeyRetryMax),
			MaxElapsed:      v.GetDuration(KeyRetryMaxElapsed),
		},
	}

	level, err := zapcore.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	cfg.logLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	var errs []error
	if c.pollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyPollInterval, c.pollInterval))
	}
	if c.logMode != ModeProduction && c.logMode != ModeDevelopment {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", KeyLogMode, ModeProduction, ModeDevelopment, c.logMode))
	}
	if c.retry.InitialInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyRetryInitial, c.retry.InitialInterval))
	}
	if c.retry.MaxInterval < c.retry.InitialInterval {
		errs = append(errs, fmt.Errorf("%s must not be below %s", KeyRetryMax, KeyRetryInitial))
	}
	if c.retry.MaxElapsed < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRetryMaxElapsed))
	}
	return multierr.Combine(errs...)
}

// LogLoaded reports the effective configuration
func (c *AppConfig) LogLoaded(logger *zap.Logger) {
	file := c.file
	if file == "" {
		file = "(none)"
	}
	logger.Info("Configuration loaded",
		zap.String("file", file),
		zap.Duration("pollInterval", c.pollInterval),
		zap.Stringer("logLevel", c.logLevel),
		zap.String("logMode", c.logMode),
		zap.Duration("retryInitial", c.retry.InitialInterval),
		zap.Duration("retryMax", c.retry.MaxInterval),
		zap.Duration("retryMaxElapsed", c.retry.MaxElapsed))
}

// GetPollInterval returns the watcher tick for poll-based backends
func (c *AppConfig) GetPollInterval() time.Duration {
	return c.pollInterval
}

// GetRetryPolicy returns the backoff bounds for watcher restarts
func (c *AppConfig) GetRetryPolicy() domain.RetryPolicy {
	return c.retry
}

// GetLogLevel returns the minimum enabled log level
func (c *AppConfig) GetLogLevel() zapcore.Level {
	return c.logLevel
}

// GetLogMode returns "production" (JSON) or "development" (console)
func (c *AppConfig) GetLogMode() string {
	return c.logMode
}

// File returns the config file that was read, or "" when none was found
func (c *AppConfig) File() string {
	return c.file
}
