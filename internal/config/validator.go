package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// minJWTSecretLen is the shortest HS256 secret the dev backend accepts.
const minJWTSecretLen = 32

// RegisterCustomValidators registers yazcar-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"cache_driver": validateCacheDriver,
		"event_output": validateEventOutput,
		"duration":     validateDuration,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func validateCacheDriver(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case CacheDriverFile, CacheDriverSQLite, CacheDriverRedis, CacheDriverMemory:
		return true
	default:
		return false
	}
}

// validateEventOutput accepts "stdout", "sqlite" or "file://<absolute-path>".
func validateEventOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()
	switch output {
	case "stdout", "sqlite":
		return true
	}
	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}
	return false
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	if c.RateLimit.Burst > 0 && c.RateLimit.Burst > c.RateLimit.Attempts*10 {
		return fmt.Errorf("rate_limit.burst %d is more than ten times rate_limit.attempts %d",
			c.RateLimit.Burst, c.RateLimit.Attempts)
	}
	return nil
}

// ValidateServer checks the settings only the dev backend needs.
func (c *Config) ValidateServer() error {
	if c.DevMode {
		return nil
	}
	if len(c.Server.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("server.jwt_secret must be at least %d characters (or run with --dev)", minJWTSecretLen)
	}
	if c.Events.Output == "sqlite" && c.Server.Database == "" {
		return errors.New("events.output sqlite requires server.database")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, strings.Replace(e.Param(), " ", " is ", 1))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration like '30s' or '5m'", field)
	case "cache_driver":
		return fmt.Sprintf("%s must be one of: file sqlite redis memory", field)
	case "event_output":
		return fmt.Sprintf("%s must be 'stdout', 'sqlite' or 'file://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
