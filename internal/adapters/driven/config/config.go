// Package config loads application tunables.
// Values are layered Defaults -> LEDGERSYNC_ environment variables and validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ledgersync/internal/core/services"
	"github.com/custodia-labs/ledgersync/internal/pagination"
	"github.com/custodia-labs/ledgersync/internal/resilience"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "LEDGERSYNC_"

// Config holds the merged runtime configuration.
// Credentials are not part of it; they are resolved by the credential resolver.
type Config struct {
	DataDir         string `koanf:"data_dir" validate:"required,safepath"`
	EnvFile         string `koanf:"env_file"`
	MetricsTextfile string `koanf:"metrics_textfile"`

	PageSize       int           `koanf:"page_size" validate:"min=1,max=1000"`
	MaxPages       int           `koanf:"max_pages" validate:"min=1"`
	PageDelay      time.Duration `koanf:"page_delay" validate:"min=0s"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"min=0s"`
	CallTimeout    time.Duration `koanf:"call_timeout" validate:"min=0s"`

	RateCapacity int           `koanf:"rate_capacity" validate:"min=1"`
	RateInterval time.Duration `koanf:"rate_interval" validate:"min=1ms"`
	RateQueue    int           `koanf:"rate_queue" validate:"min=-1"`

	BreakerThreshold int           `koanf:"breaker_threshold" validate:"min=1"`
	BreakerCoolDown  time.Duration `koanf:"breaker_cooldown" validate:"min=1s"`

	SafetyMargin        time.Duration `koanf:"safety_margin" validate:"min=0s,max=55m"`
	RefreshRetries      int           `koanf:"refresh_retries" validate:"min=0,max=10"`
	RefreshBaseDelay    time.Duration `koanf:"refresh_base_delay" validate:"min=0s"`
	CallbackTimeout     time.Duration `koanf:"callback_timeout" validate:"min=1s"`
	FallbackPort        int           `koanf:"fallback_port" validate:"min=1,max=65535"`
	SecretsReadyTimeout time.Duration `koanf:"secrets_ready_timeout" validate:"min=1s"`
}

// DefaultAppConfig holds the defaults. DataDir is filled in by Load.
var DefaultAppConfig = Config{
	EnvFile: ".env",

	PageSize:       pagination.DefaultPageSize,
	MaxPages:       pagination.DefaultMaxPages,
	PageDelay:      pagination.DefaultDelay,
	AcquireTimeout: 30 * time.Second,
	CallTimeout:    5 * time.Minute,

	RateCapacity: resilience.DefaultCapacity,
	RateInterval: resilience.DefaultRefillInterval,
	RateQueue:    resilience.DefaultQueueLimit,

	BreakerThreshold: resilience.DefaultFailureThreshold,
	BreakerCoolDown:  resilience.DefaultCoolDown,

	SafetyMargin:        5 * time.Minute,
	RefreshRetries:      services.DefaultRefreshRetries,
	RefreshBaseDelay:    services.DefaultRefreshBaseDelay,
	CallbackTimeout:     services.DefaultCallbackTimeout,
	FallbackPort:        services.DefaultFallbackPort,
	SecretsReadyTimeout: services.DefaultSecretsReadyTimeout,
}

// Swappable for tests.
var (
	defaultLoader = func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
	}

	envLoader = func(k *koanf.Koanf) error {
		return k.Load(env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
			},
		}), nil)
	}

	registerValidators = func(v *validator.Validate) error {
		return v.RegisterValidation("safepath", validPath)
	}

	homeDir   = os.UserHomeDir
	lookupEnv = os.LookupEnv
)

// Load merges defaults and environment variables and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if _, set := lookupEnv(EnvPrefix + "DATA_DIR"); cfg.DataDir == "" && !set {
		home, err := homeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, file.DefaultDirName)
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, describe(err)
	}

	return &cfg, nil
}

// RateLimit returns the limiter configuration.
func (c *Config) RateLimit() resilience.RateLimitConfig {
	return resilience.RateLimitConfig{
		Capacity:   c.RateCapacity,
		Interval:   c.RateInterval,
		QueueLimit: c.RateQueue,
	}
}

// CircuitBreaker returns the breaker configuration.
func (c *Config) CircuitBreaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		Threshold: c.BreakerThreshold,
		CoolDown:  c.BreakerCoolDown,
	}
}

// Sync returns the orchestrator options.
func (c *Config) Sync() services.SyncOptions {
	return services.SyncOptions{
		PageSize:       c.PageSize,
		MaxPages:       c.MaxPages,
		PageDelay:      c.PageDelay,
		AcquireTimeout: c.AcquireTimeout,
		CallTimeout:    c.CallTimeout,
	}
}

// Token returns the token manager options that come from configuration.
func (c *Config) Token() services.TokenManagerOptions {
	return services.TokenManagerOptions{
		SafetyMargin:     c.SafetyMargin,
		CallbackTimeout:  c.CallbackTimeout,
		FallbackPort:     c.FallbackPort,
		RefreshRetries:   c.RefreshRetries,
		RefreshBaseDelay: c.RefreshBaseDelay,
	}
}

// validPath rejects paths that are empty, the filesystem root or the
// working directory itself, or that climb with "..".
func validPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" {
		return false
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == string(filepath.Separator) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// describe turns validator errors into one message per field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Errorf("%s: must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Errorf("%s: failed %s (got %q)", fe.Field(), fe.Tag(), fmt.Sprint(fe.Value())))
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(msgs...))
}
