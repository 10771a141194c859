package config

import (
	"strings"
	"time"

	"github.com/MultiDragon/libpuns/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyMetricsDefaults(&cfg.Metrics)
	applyControlPlaneDefaults(&cfg.ControlPlane)
	applyCacheDefaults(&cfg.Cache)
	applyAdminDefaults(&cfg.Admin)
	applyArchiveDefaults(&cfg.Archive)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyServerDefaults sets defaults for the TCP director listener.
//
// ReservedSpecialRange defaults to 10, matching the wire-literal floor
// of the special-message enumeration: special messages occupy 1-9,
// class numbers begin at 10. registry.Configure does not reject class
// numbers below this floor.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":7199"
	}
	if cfg.ReservedSpecialRange == 0 {
		cfg.ReservedSpecialRange = 10
	}
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = 2 * time.Second
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Driver == "" {
		cfg.Driver = "dummy"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyControlPlaneDefaults(cfg *ControlPlaneConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
}

// applyCacheDefaults sets memory-handler cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Driver == "" {
		cfg.Driver = "memory"
	}
	if cfg.Size == 0 {
		cfg.Size = bytesize.ByteSize(bytesize.GiB)
	}
	if cfg.Path == "" {
		cfg.Path = "/tmp/libpuns-cache"
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
}

// applyArchiveDefaults sets defaults for the S3 snapshot archiver. Only
// meaningful when Enabled.
func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "libpuns/snapshots/"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Server:  ServerConfig{},
		Database: DatabaseConfig{
			Driver: "dummy",
		},
		Cache: CacheConfig{
			Driver: "memory",
			Path:   "/tmp/libpuns-cache",
			Size:   bytesize.ByteSize(bytesize.GiB),
		},
		ControlPlane: ControlPlaneConfig{
			// Off by default: enabling it requires a JWT secret the
			// operator must supply, so it is opt-in like Telemetry,
			// Metrics, and Archive.
			Enabled: false,
			JWT: JWTConfig{
				Secret: "",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
