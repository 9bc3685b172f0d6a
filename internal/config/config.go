package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// Config represents the complete application configuration. Values are
// layered: built-in defaults, then the optional config file, then
// environment variables, then runtime overrides.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Provider ProviderConfig `mapstructure:"provider"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AdminToken guards the /debug and /admin routes. Empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

// StoreConfig selects the state database. Driver is "libsql" (local file,
// :memory: or Turso URL) or "pgx" (Postgres DSN in URL).
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ThrottleConfig tunes the concurrency controller and credential pool.
type ThrottleConfig struct {
	Controller  ControllerConfig  `mapstructure:"controller"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

type ControllerConfig struct {
	Min                int           `mapstructure:"min"`
	Max                int           `mapstructure:"max"`
	Initial            int           `mapstructure:"initial"`
	AdjustmentInterval time.Duration `mapstructure:"adjustment_interval"`
	TargetSuccessRate  float64       `mapstructure:"target_success_rate"`
	TargetResponseTime time.Duration `mapstructure:"target_response_time"`
}

type CredentialsConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// ProviderConfig describes the keyword API and its credentials. Name is the
// namespace under which throttle state is persisted.
type ProviderConfig struct {
	Name            string             `mapstructure:"name"`
	Driver          string             `mapstructure:"driver"`
	RequestRPS      float64            `mapstructure:"request_rps"`
	RateLimitMargin float64            `mapstructure:"rate_limit_margin"`
	MaxAttempts     int                `mapstructure:"max_attempts"`
	Credentials     []CredentialConfig `mapstructure:"credentials"`
	Simulated       SimulatedConfig    `mapstructure:"simulated"`
	HTTP            HTTPConfig         `mapstructure:"http"`
}

// CredentialConfig is one API key. Enabled defaults to true when omitted.
type CredentialConfig struct {
	Label   string `mapstructure:"label"`
	APIKey  string `mapstructure:"api_key"`
	Enabled *bool  `mapstructure:"enabled"`
}

type SimulatedConfig struct {
	RatePerMinute float64       `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
	BaseLatency   time.Duration `mapstructure:"base_latency"`
	Jitter        time.Duration `mapstructure:"jitter"`
	LoadPenalty   time.Duration `mapstructure:"load_penalty"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	Seed          uint64        `mapstructure:"seed"`
}

type HTTPConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	KeywordParam string        `mapstructure:"keyword_param"`
	AuthHeader   string        `mapstructure:"auth_header"`
	AuthScheme   string        `mapstructure:"auth_scheme"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated exporter port; throttle gauges are also served
	// from the main HTTP port under /metrics/throttle.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// EnabledCredentials returns the usable credentials in configuration order,
// indexed densely from zero. Entries without an API key are skipped unless
// the simulated driver is in use.
func (p ProviderConfig) EnabledCredentials() []core.Credential {
	simulated := p.Driver == "" || strings.EqualFold(p.Driver, "simulated")

	out := make([]core.Credential, 0, len(p.Credentials))
	for i, cred := range p.Credentials {
		if cred.Enabled != nil && !*cred.Enabled {
			continue
		}
		key := strings.TrimSpace(cred.APIKey)
		if key == "" && !simulated {
			continue
		}
		label := strings.TrimSpace(cred.Label)
		if label == "" {
			label = "credential-" + strconv.Itoa(i)
		}
		out = append(out, core.Credential{Index: len(out), Label: label, APIKey: key})
	}
	return out
}
