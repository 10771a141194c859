package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes a fresh configuration file to the default location.
// It refuses to overwrite an existing file unless force is true.
// Returns the path the file was written to.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a fresh configuration file to the given path.
// It refuses to overwrite an existing file unless force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	cfg := GetDefaultConfig()
	cfg.ControlPlane.JWT.Secret = secret

	content := renderConfigTemplate(cfg)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// randomSecret returns a 64-character hex-encoded random string suitable
// as an HMAC signing secret for admin API bearer tokens.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// renderConfigTemplate produces a commented YAML template seeded with cfg's
// values. Written by hand rather than via yaml.Marshal so the file carries
// explanatory comments for first-time operators.
func renderConfigTemplate(cfg *Config) string {
	return fmt.Sprintf(`# libpuns Configuration File
#
# This file configures a libpuns distributed-object server: the TCP
# director, the account database, the admin control-plane API, and the
# field-snapshot cache. Classes and zones are registered in code, not
# here - see pkg/registry.

logging:
  level: %q
  format: %q
  output: %q

telemetry:
  enabled: false
  endpoint: %q
  insecure: true
  sample_rate: %v

shutdown_timeout: %s

server:
  listen_addr: %q
  reserved_special_range: %d
  dedup_window: %s

database:
  driver: %q
  auto_migrate: true

metrics:
  enabled: false
  port: %d

controlplane:
  enabled: %v
  port: %d
  jwt:
    secret: %q
    ttl: %s

cache:
  driver: %q
  path: %q
  size: %d

admin:
  username: %q

# Disabled by default; set enabled: true and bucket to mirror
# connected accounts' field caches to S3 periodically.
archive:
  enabled: false
  bucket: ""
  region: %q
  interval: %s
`,
		cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output,
		cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRate,
		cfg.ShutdownTimeout,
		cfg.Server.ListenAddr, cfg.Server.ReservedSpecialRange, cfg.Server.DedupWindow,
		cfg.Database.Driver,
		cfg.Metrics.Port,
		cfg.ControlPlane.Enabled, cfg.ControlPlane.Port, cfg.ControlPlane.JWT.Secret, cfg.ControlPlane.JWT.TTL,
		cfg.Cache.Driver, cfg.Cache.Path, uint64(cfg.Cache.Size),
		cfg.Admin.Username,
		cfg.Archive.Region, cfg.Archive.Interval,
	)
}
