package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("probability", validateProbability)
	_ = v.RegisterValidation("cronspec", validateCronSpec)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateProbability accepts floats in [0, 1]
func validateProbability(fl validator.FieldLevel) bool {
	p := fl.Field().Float()
	return p >= 0 && p <= 1
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// validateCrossField performs checks that span several fields
func validateCrossField(cfg *Config) error {
	if cfg.Strategy.MinOdds <= 1 {
		return fmt.Errorf("strategy.min_odds must be greater than 1, got %v", cfg.Strategy.MinOdds)
	}
	if cfg.Strategy.MaxStakePct > 1 {
		return fmt.Errorf("strategy.max_stake_pct must not exceed 1, got %v", cfg.Strategy.MaxStakePct)
	}
	if cfg.Bankroll.Initial <= 0 {
		return fmt.Errorf("bankroll.initial must be positive, got %v", cfg.Bankroll.Initial)
	}

	if cfg.Database.Enabled {
		var missing []string
		if cfg.Database.Host == "" {
			missing = append(missing, "host")
		}
		if cfg.Database.Port == 0 {
			missing = append(missing, "port")
		}
		if cfg.Database.Name == "" {
			missing = append(missing, "name")
		}
		if cfg.Database.User == "" {
			missing = append(missing, "user")
		}
		if len(missing) > 0 {
			return fmt.Errorf("database enabled but missing: %s", strings.Join(missing, ", "))
		}
	}

	if cfg.AWS.SecretsEnabled && (cfg.AWS.Region == "" || cfg.AWS.SecretName == "") {
		return fmt.Errorf("aws.secrets_enabled requires aws.region and aws.secret_name")
	}

	return ValidateEnvironment(cfg)
}

// formatValidationErrors formats validation errors into a readable message
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "probability":
			fmt.Fprintf(&b, "- Field '%s' must be between 0 and 1, got '%v'\n", field, value)
		case "cronspec":
			fmt.Fprintf(&b, "- Field '%s' must be a 5-field cron expression, got '%v'\n", field, value)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.Enabled {
		if cfg.Database.SSLMode == "disable" || cfg.Database.SSLMode == "" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}
		if isTestCredential(cfg.Database.Password) {
			return fmt.Errorf("production environment should not use a test database password")
		}
	}

	return nil
}

var testCredentialPattern = regexp.MustCompile(`(?i)test|demo|example|placeholder|YOUR_`)

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	return testCredentialPattern.MatchString(credential)
}
