package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendMultiBaas = "multibaas"
	BackendChain     = "chain"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Backend string

	// MultiBaas
	Deployment        string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// EVM JSON-RPC
	RPCURL    string
	FromBlock uint64
	ToBlock   uint64
	BatchSize uint64
	Addresses []string
	Labels    map[string]string
	ABIFiles  []string
	ScanTTL   time.Duration

	PageSize     int
	MaxRows      int
	MaxRetries   int
	RetryBackoff time.Duration

	TimeFormat string
	TimeZone   string

	RunLog string
	PGDSN  string

	Listen       string
	ServerAPIKey string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MBSHEETS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend", BackendMultiBaas)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("requests-per-second", 10.0)
	v.SetDefault("burst", 5)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("scan-ttl", time.Minute)
	v.SetDefault("page-size", 100)
	v.SetDefault("max-rows", 10000)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("time-format", "2006-01-02 15:04:05")
	v.SetDefault("time-zone", "UTC")
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Backend:           strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		Deployment:        v.GetString("deployment"),
		APIKey:            v.GetString("api-key"),
		Timeout:           v.GetDuration("timeout"),
		RequestsPerSecond: v.GetFloat64("requests-per-second"),
		Burst:             v.GetInt("burst"),
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Addresses:         getStringSlice(v, "address"),
		Labels:            getStringMap(v, "label"),
		ABIFiles:          getStringSlice(v, "abi"),
		ScanTTL:           v.GetDuration("scan-ttl"),
		PageSize:          v.GetInt("page-size"),
		MaxRows:           v.GetInt("max-rows"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		TimeFormat:        v.GetString("time-format"),
		TimeZone:          v.GetString("time-zone"),
		RunLog:            v.GetString("run-log"),
		PGDSN:             v.GetString("pg-dsn"),
		Listen:            v.GetString("listen"),
		ServerAPIKey:      v.GetString("server-api-key"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// ValidateBackend checks the settings the selected backend needs.
func (c Config) ValidateBackend() error {
	switch c.Backend {
	case BackendMultiBaas:
		if c.Deployment == "" {
			return fmt.Errorf("deployment is required for the %s backend", c.Backend)
		}
	case BackendChain:
		if c.RPCURL == "" {
			return fmt.Errorf("rpc url is required for the %s backend", c.Backend)
		}
		if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
			return fmt.Errorf("to block %d is before from block %d", c.ToBlock, c.FromBlock)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("max rows must be positive")
	}
	return nil
}

// getStringSlice accepts a YAML list, a repeated flag, or a comma-separated
// env value.
func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	var items []string
	switch typed := v.Get(key).(type) {
	case []string:
		items = typed
	case string:
		items = strings.Split(typed, ",")
	case []interface{}:
		for _, item := range typed {
			items = append(items, fmt.Sprint(item))
		}
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getStringMap accepts a YAML mapping or label=value pairs in any form
// getStringSlice understands.
func getStringMap(v *viper.Viper, key string) map[string]string {
	out := make(map[string]string)
	if !v.IsSet(key) {
		return out
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		for k, val := range typed {
			out[k] = fmt.Sprint(val)
		}
		return out
	}

	for _, pair := range getStringSlice(v, key) {
		k, val, ok := strings.Cut(pair, "=")
		k, val = strings.TrimSpace(k), strings.TrimSpace(val)
		if !ok || k == "" || val == "" {
			continue
		}
		out[k] = val
	}
	return out
}
