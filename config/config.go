package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const DefaultTimeSourceURL = "http://worldtimeapi.org/api/timezone/Asia/Riyadh"

var tableName = regexp.MustCompile(`^[A-Za-z0-9_$#]+$`)

type ServerConfig struct {
	Address         string `mapstructure:"address" json:"address"`
	Environment     string `mapstructure:"environment" json:"environment"`
	ReadTimeout     string `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout" json:"write_timeout"`
	IdleTimeout     string `mapstructure:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

type BreakerConfig struct {
	Enabled          bool   `mapstructure:"enabled" json:"enabled"`
	FailureThreshold int    `mapstructure:"failure_threshold" json:"failure_threshold"`
	OpenTimeout      string `mapstructure:"open_timeout" json:"open_timeout"`
}

type UpstreamConfig struct {
	BaseURL       string        `mapstructure:"base_url" json:"base_url"`
	Table         string        `mapstructure:"table" json:"table"`
	Timeout       string        `mapstructure:"timeout" json:"timeout"`
	HealthTimeout string        `mapstructure:"health_timeout" json:"health_timeout"`
	Breaker       BreakerConfig `mapstructure:"breaker" json:"breaker"`
}

// HealthCheckConfig controls the background upstream probe. An interval of
// zero disables it; the /health route always probes on demand.
type HealthCheckConfig struct {
	Interval string `mapstructure:"interval" json:"interval"`
}

type TimeSourceConfig struct {
	URL     string `mapstructure:"url" json:"url"`
	Timeout string `mapstructure:"timeout" json:"timeout"`
}

type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers" json:"allow_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" json:"max_age"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server" json:"server"`
	Upstream    UpstreamConfig    `mapstructure:"upstream" json:"upstream"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check" json:"health_check"`
	TimeSource  TimeSourceConfig  `mapstructure:"timesource" json:"timesource"`
	CORS        CORSConfig        `mapstructure:"cors" json:"cors"`
	Logging     LoggingConfig     `mapstructure:"logging" json:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" json:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.table", "table1_11")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.health_timeout", "10s")
	v.SetDefault("upstream.breaker.enabled", false)
	v.SetDefault("upstream.breaker.failure_threshold", 5)
	v.SetDefault("upstream.breaker.open_timeout", "30s")

	v.SetDefault("health_check.interval", "0s")

	v.SetDefault("timesource.url", DefaultTimeSourceURL)
	v.SetDefault("timesource.timeout", "10s")

	// Wide open to match the browser dashboard setup. Restrict in production.
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.allow_methods", []string{"*"})
	v.SetDefault("cors.allow_headers", []string{"*"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("metrics.buffer_size", 1000)
}

// Load reads config.yaml from ./config or the working directory, applies
// environment overrides (UPSTREAM_BASE_URL for upstream.base_url) and
// validates the result. Each call starts from a fresh viper instance.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section, then that the slowest request path fits in
// the server write timeout. Errors name the config keys.
func (c *Config) Validate() error {
	if err := c.validateFields(); err != nil {
		return err
	}
	return c.validateRequestBudget()
}

func (c *Config) validateFields() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&sc.ShutdownTimeout, validation.Required, validation.By(validatePositiveDuration)),
				)
			}),
		),
		validation.Field(&c.Upstream,
			validation.Required,
			validation.By(func(value interface{}) error {
				uc, ok := value.(UpstreamConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
				}
				return validation.ValidateStruct(&uc,
					validation.Field(&uc.BaseURL,
						validation.Required,
						validation.By(validateServerURL),
						validation.By(validateCollectionURL),
					),
					validation.Field(&uc.Table,
						validation.Required,
						validation.Match(tableName),
					),
					validation.Field(&uc.Timeout, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&uc.HealthTimeout, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&uc.Breaker, validation.By(validateBreakerConfig)),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.TimeSource,
			validation.Required,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TimeSourceConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TimeSourceConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.URL, validation.Required, validation.By(validateServerURL)),
					validation.Field(&tc.Timeout, validation.Required, validation.By(validatePositiveDuration)),
				)
			}),
		),
		validation.Field(&c.CORS,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CORSConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CORSConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.AllowOrigins,
						validation.Required,
						validation.Each(validation.By(validateOrigin)),
					),
					validation.Field(&cc.AllowMethods, validation.Required),
					validation.Field(&cc.AllowHeaders, validation.Required),
					validation.Field(&cc.MaxAge, validation.Min(0)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

// The summary route makes the upstream call and then the time lookup, and
// /health makes the probe and then the time lookup. Both must finish before
// the server write deadline or the client gets a dropped connection instead
// of an error envelope.
func (c *Config) validateRequestBudget() error {
	write := Duration(c.Server.WriteTimeout)
	clock := Duration(c.TimeSource.Timeout)

	errs := validation.Errors{}
	if Duration(c.Upstream.Timeout)+clock >= write {
		errs["timeout"] = validation.NewError("validation_timeout_exceeds_write",
			"together with timesource.timeout must be shorter than server.write_timeout")
	}
	if Duration(c.Upstream.HealthTimeout)+clock >= write {
		errs["health_timeout"] = validation.NewError("validation_timeout_exceeds_write",
			"together with timesource.timeout must be shorter than server.write_timeout")
	}

	if len(errs) > 0 {
		return validation.Errors{"upstream": errs}
	}
	return nil
}

// Duration parses a validated duration string. Invalid values yield zero.
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "must not be negative")
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	if err := validateDuration(value); err != nil {
		return err
	}

	if d, _ := time.ParseDuration(value.(string)); d == 0 {
		return validation.NewError("validation_zero_duration", "must be greater than zero")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

// Record ids are appended to the base URL, so it has to name the collection
// with its trailing slash.
func validateCollectionURL(value interface{}) error {
	baseURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasSuffix(baseURL, "/") {
		return validation.NewError("validation_missing_trailing_slash", "collection URL must end with /")
	}

	if strings.ContainsAny(baseURL, "?#") {
		return validation.NewError("validation_unexpected_query", "collection URL must not have a query or fragment")
	}

	return nil
}

func validateOrigin(value interface{}) error {
	origin, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if origin == "*" {
		return nil
	}

	return validateServerURL(origin)
}

func validateBreakerConfig(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}

	return validation.ValidateStruct(&bc,
		validation.Field(&bc.FailureThreshold,
			validation.When(bc.Enabled, validation.Required, validation.Min(1)),
		),
		validation.Field(&bc.OpenTimeout,
			validation.When(bc.Enabled, validation.Required, validation.By(validatePositiveDuration)),
		),
	)
}
