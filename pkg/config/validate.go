package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a fully-defaulted Config against its struct tags, plus
// the cross-field invariants struct tags can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return validateCrossFields(cfg)
}

// validateCrossFields checks invariants that span more than one field,
// which go-playground/validator's struct tags cannot express directly.
func validateCrossFields(cfg *Config) error {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Database.Driver != "dummy" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", cfg.Database.Driver)
	}
	if cfg.ControlPlane.Enabled && len(cfg.ControlPlane.JWT.Secret) < 32 {
		return fmt.Errorf("controlplane.jwt.secret must be at least 32 characters when controlplane is enabled")
	}
	return nil
}
