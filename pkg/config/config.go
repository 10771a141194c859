package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/MultiDragon/libpuns/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete libpuns server configuration.
//
// This structure captures the static configuration of a libpuns server
// process: logging, telemetry, the TCP listener, the account database,
// the control plane admin API, the memory-handler cache, and the
// bootstrap admin account.
//
// Dynamic configuration (classes, zones, field flags) is owned by the
// process-wide class registry and is not part of this file; it is
// built in code by the application embedding the library (see
// pkg/registry).
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (LIBPUNS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// of the server director's reactor loop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Server contains the TCP listener configuration for the server director.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures the account store backing attempt_login/update_object.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ControlPlane contains the admin HTTP API server configuration.
	ControlPlane ControlPlaneConfig `mapstructure:"controlplane" yaml:"controlplane"`

	// Cache configures the server's field-snapshot cache (query_memory):
	// an in-process map, or BadgerDB when it must survive a restart.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Admin contains initial admin account configuration for bootstrap.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Archive optionally mirrors connected accounts' cached snapshots to
	// S3 for offline inspection and disaster recovery.
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// ServerConfig controls the server director's TCP listener.
type ServerConfig struct {
	// ListenAddr is the TCP address the server director accepts
	// connections on, e.g. ":7199" or "0.0.0.0:7199".
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// ReservedSpecialRange reserves the low end of the shared u16 message
	// namespace for special messages. It is loaded, defaulted and written
	// to generated config files, but neither director reads it: both build
	// their dispatch engine with a fixed range of 10, and registry.Configure
	// does not check class numbers against it.
	// Default: 10 (the wire-literal special-message range from the
	// protocol description; kept distinct from the higher floor discussed,
	// but never adopted, in the design notes).
	ReservedSpecialRange uint16 `mapstructure:"reserved_special_range" yaml:"reserved_special_range"`

	// DedupWindow is loaded, defaulted and written to generated config
	// files, but the server director does not read it: ObjectRequest
	// replies are not rate-limited per OID.
	DedupWindow time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
}

// DatabaseConfig configures the account database backing the Database
// interface (attempt_login / update_object).
type DatabaseConfig struct {
	// Driver selects the backing store: "dummy" (in-memory, for examples
	// and tests), "sqlite", or "postgres".
	Driver string `mapstructure:"driver" validate:"required,oneof=dummy sqlite postgres" yaml:"driver"`

	// DSN is the data source name for sqlite/postgres drivers. Ignored
	// for "dummy".
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`

	// AutoMigrate runs gorm's schema migration on startup.
	AutoMigrate bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// ControlPlaneConfig configures the admin HTTP API (zone occupancy,
// connected accounts, registry signature, live kick, account creation)
// served alongside the TCP director.
type ControlPlaneConfig struct {
	// Enabled controls whether the admin HTTP API is served at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the admin API.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// JWT configures bearer-token authentication for admin endpoints.
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// JWTConfig configures signing of admin API bearer tokens.
type JWTConfig struct {
	// Secret is the HMAC signing secret. Must be at least 32 characters.
	Secret string `mapstructure:"secret" validate:"omitempty,min=32" yaml:"secret,omitempty"`

	// TTL is the lifetime of an issued admin token.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// CacheConfig specifies the server director's query_memory snapshot
// cache: the last known value of every RAM/Database-flagged field.
type CacheConfig struct {
	// Driver selects the cache implementation: "memory" (default, lost
	// on restart) or "badger" (BadgerDB-backed, survives a restart).
	Driver string `mapstructure:"driver" validate:"required,oneof=memory badger" yaml:"driver"`

	// Path is the directory BadgerDB opens its database files in.
	// Ignored for the "memory" driver.
	Path string `mapstructure:"path" validate:"required_if=Driver badger" yaml:"path,omitempty"`

	// Size is a soft ceiling on the in-memory table BadgerDB keeps;
	// supports human-readable formats: "1GB", "512MB", "10Gi". Ignored
	// for the "memory" driver.
	Size bytesize.ByteSize `mapstructure:"size" yaml:"size,omitempty"`
}

// AdminConfig contains initial admin account configuration for the
// control plane API, created by `libpuns init`.
type AdminConfig struct {
	Username     string `mapstructure:"username" yaml:"username"`
	Email        string `mapstructure:"email" yaml:"email,omitempty"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// ArchiveConfig optionally mirrors connected accounts' snapshots to S3,
// transient and durable OIDs alike.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Bucket          string `mapstructure:"bucket" validate:"required_if=Enabled true" yaml:"bucket,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`

	// Interval is how often connected accounts' snapshots are
	// mirrored to S3. Ignored unless Enabled.
	Interval time.Duration `mapstructure:"interval" yaml:"interval,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LIBPUNS_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  libpuns init\n\n"+
				"Or specify a custom config file:\n"+
				"  libpuns <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  libpuns init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config may carry a password hash or a JWT signing secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("LIBPUNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings/numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "libpuns")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "libpuns")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
