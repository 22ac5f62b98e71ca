package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation
// results. It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	switch d.Driver {
	case "mysql", "sqlite":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.driver",
			Message: fmt.Sprintf("unsupported driver %q", d.Driver),
			Hint:    "use mysql or sqlite",
		})
	}

	if d.ConnectionString == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.dsn",
			Message: "database DSN is required",
			Hint:    "set database.dsn, database.dsn_file, or EXPGQL_DATABASE_DSN",
		})
	}

	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "must not be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "must not be negative",
		})
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "exceeds max_open; idle connections above max_open are never kept",
		})
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("invalid port %d", s.Port),
			Hint:    "use a port between 1 and 65535",
		})
	}

	if s.Pagination.DefaultPageSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.pagination.default_page_size",
			Message: "must be at least 1",
		})
	}
	if s.Pagination.MaxPageSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.pagination.max_page_size",
			Message: "must be at least 1",
		})
	}
	if s.Pagination.DefaultPageSize > s.Pagination.MaxPageSize {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.pagination.default_page_size",
			Message: "must not exceed max_page_size",
		})
	}

	if s.CORSEnabled && len(s.CORSAllowedOrigins) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.cors_allowed_origins",
			Message: "must not be empty when CORS is enabled",
			Hint:    "list allowed origins or disable server.cors_enabled",
		})
	}
	if s.CORSAllowCredentials {
		for _, origin := range s.CORSAllowedOrigins {
			if origin == "*" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   "server.cors_allowed_origins",
					Message: "wildcard origin is not allowed with credentials",
					Hint:    "list explicit origins when cors_allow_credentials is true",
				})
				break
			}
		}
	}

	for field, timeout := range map[string]int64{
		"server.read_timeout":         int64(s.ReadTimeout),
		"server.write_timeout":        int64(s.WriteTimeout),
		"server.idle_timeout":         int64(s.IdleTimeout),
		"server.shutdown_timeout":     int64(s.ShutdownTimeout),
		"server.health_check_timeout": int64(s.HealthCheckTimeout),
	} {
		if timeout < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "must not be negative",
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	if o.ServiceName == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.service_name",
			Message: "service name is required",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %v", o.TraceSampleRatio),
		})
	}

	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid level %q", o.Logging.Level),
			Hint:    "use debug, info, warn, or error",
		})
	}

	switch o.Logging.Format {
	case "json", "text":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid format %q", o.Logging.Format),
			Hint:    "use json or text",
		})
	}

	needsOTLP := o.TracingEnabled || o.Logging.ExportsEnabled
	if needsOTLP && o.OTLP.Endpoint == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.otlp.endpoint",
			Message: "endpoint is required when tracing or log export is enabled",
		})
	}
}
