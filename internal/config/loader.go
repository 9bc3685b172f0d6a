// Package config provides centralized configuration management. Settings are
// resolved through viper from built-in defaults, an optional YAML file in the
// XDG config directory, and environment variables carrying the app identity
// prefix, then decoded into Config with mapstructure.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/lsk7209/0-nkey-sub001/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	configFile  string
	appIdentity *appid.Identity
)

// SetConfigFile pins an explicit config file; an empty path restores discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// Load resolves configuration. runtimeOverrides are nested maps keyed like the
// config file and win over every other layer.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	identity, err := identityFor(ctx)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		if dir := gfconfig.GetAppConfigDir(identity.ConfigName); strings.TrimSpace(dir) != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(identity.ViperPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.admin_token", identity.EnvPrefix+"ADMIN_TOKEN")
	_ = v.BindEnv("store.path", identity.EnvPrefix+"DB_PATH")
	_ = v.BindEnv("store.url", identity.EnvPrefix+"DB_URL")
	_ = v.BindEnv("store.auth_token", identity.EnvPrefix+"DB_AUTH_TOKEN")
	_ = v.BindEnv("logging.level", identity.EnvPrefix+"LOG_LEVEL")

	if creds := credentialEnvOverrides(identity.EnvPrefix, os.Environ()); len(creds) > 0 {
		v.Set("provider.credentials", creds)
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode maps a nested settings map onto Config. Durations accept Go duration
// strings and lists accept comma-separated strings.
func Decode(input map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Throttle defaults
	v.SetDefault("throttle.controller.min", 5)
	v.SetDefault("throttle.controller.max", 50)
	v.SetDefault("throttle.controller.initial", 10)
	v.SetDefault("throttle.controller.adjustment_interval", "30s")
	v.SetDefault("throttle.controller.target_success_rate", 0.95)
	v.SetDefault("throttle.controller.target_response_time", "2s")
	v.SetDefault("throttle.credentials.cooldown", "5m")

	// Provider defaults
	v.SetDefault("provider.name", "default")
	v.SetDefault("provider.driver", "simulated")
	v.SetDefault("provider.request_rps", 0)
	v.SetDefault("provider.rate_limit_margin", 0.9)
	v.SetDefault("provider.max_attempts", 2)
	v.SetDefault("provider.credentials", []any{
		map[string]any{"label": "sim-a"},
		map[string]any{"label": "sim-b"},
		map[string]any{"label": "sim-c"},
	})
	v.SetDefault("provider.simulated.rate_per_minute", 240)
	v.SetDefault("provider.simulated.burst", 8)
	v.SetDefault("provider.simulated.base_latency", "40ms")
	v.SetDefault("provider.simulated.jitter", "40ms")
	v.SetDefault("provider.simulated.load_penalty", "4ms")
	v.SetDefault("provider.simulated.failure_ratio", 0.01)
	v.SetDefault("provider.simulated.seed", 1)
	v.SetDefault("provider.http.endpoint", "")
	v.SetDefault("provider.http.keyword_param", "keyword")
	v.SetDefault("provider.http.auth_header", "Authorization")
	v.SetDefault("provider.http.auth_scheme", "Bearer")
	v.SetDefault("provider.http.timeout", "10s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func identityFor(ctx context.Context) (*appid.Identity, error) {
	configMu.RLock()
	identity := appIdentity
	configMu.RUnlock()
	if identity != nil {
		return identity, nil
	}

	identity, err := appid.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app identity: %w", err)
	}

	configMu.Lock()
	appIdentity = identity
	configMu.Unlock()
	return identity, nil
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "nkey" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = "nkey"
	binaryName = "nkey"

	identity, err := identityFor(context.Background())
	if err != nil || identity == nil {
		return configName, binaryName
	}
	if strings.TrimSpace(identity.ConfigName) != "" {
		configName = identity.ConfigName
	}
	if strings.TrimSpace(identity.BinaryName) != "" {
		binaryName = identity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// credentialEnvOverrides collects {PREFIX}CREDENTIALS_<N>_<FIELD> variables
// into an ordered credential list. Gaps in N are dropped.
func credentialEnvOverrides(prefix string, environ []string) []any {
	credPrefix := prefix + "CREDENTIALS_"
	byIndex := map[int]map[string]any{}

	for _, item := range environ {
		key, value, ok := strings.Cut(item, "=")
		if !ok || !strings.HasPrefix(key, credPrefix) {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		rawIndex, rawField, ok := strings.Cut(key[len(credPrefix):], "_")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(rawIndex)
		if err != nil || idx < 0 {
			continue
		}

		field := strings.ToLower(rawField)
		cred, ok := byIndex[idx]
		if !ok {
			cred = map[string]any{}
			byIndex[idx] = cred
		}
		switch field {
		case "enabled":
			cred[field] = strings.EqualFold(value, "true")
		case "api_key", "label":
			cred[field] = value
		}
	}

	indices := make([]int, 0, len(byIndex))
	for idx, cred := range byIndex {
		if len(cred) > 0 {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	out := make([]any, 0, len(indices))
	for _, idx := range indices {
		out = append(out, byIndex[idx])
	}
	return out
}

func flatten(prefix string, in map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range in {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(path, nested) {
				out[k] = v
			}
			continue
		}
		out[path] = value
	}
	return out
}
