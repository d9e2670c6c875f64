package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase("source", &c.Source)...)

	if c.Output.WriteDatabase {
		errors = append(errors, c.validateDatabase("destination", &c.Destination)...)
		if c.Output.CloneSource && c.Destination.Driver != c.Source.Driver {
			errors = append(errors, ValidationError{
				Field:   "output.clone_source",
				Message: "destination driver must match source driver when cloning",
			})
		}
	}

	errors = append(errors, c.validateJobService()...)
	errors = append(errors, c.validateSynthesis()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	switch db.Driver {
	case "sqlite":
		if db.Path == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".path",
				Message: "path is required for sqlite",
			})
		}
		return errors
	case "mysql", "postgres":
	default:
		errors = append(errors, ValidationError{
			Field:   prefix + ".driver",
			Message: "driver must be 'mysql', 'postgres', or 'sqlite'",
		})
		return errors
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJobService() ValidationErrors {
	var errors ValidationErrors
	js := &c.JobService

	switch js.Backend {
	case "http":
		if js.Endpoint == "" {
			errors = append(errors, ValidationError{
				Field:   "job_service.endpoint",
				Message: "endpoint is required for the http backend",
			})
		}
	case "local":
	default:
		errors = append(errors, ValidationError{
			Field:   "job_service.backend",
			Message: "backend must be 'http' or 'local'",
		})
	}

	if js.PollInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "job_service.poll_interval",
			Message: "poll_interval cannot be negative",
		})
	}

	if js.BackoffFactor < 1 {
		errors = append(errors, ValidationError{
			Field:   "job_service.backoff_factor",
			Message: "backoff_factor must be at least 1",
		})
	}

	if js.MaxPollInterval < js.PollInterval {
		errors = append(errors, ValidationError{
			Field:   "job_service.max_poll_interval",
			Message: "max_poll_interval cannot be less than poll_interval",
		})
	}

	if js.MaxPolls < 0 {
		errors = append(errors, ValidationError{
			Field:   "job_service.max_polls",
			Message: "max_polls cannot be negative",
		})
	}

	if js.JobTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "job_service.job_timeout",
			Message: "job_timeout cannot be negative",
		})
	}

	if js.MaxPollErrors < 0 {
		errors = append(errors, ValidationError{
			Field:   "job_service.max_poll_errors",
			Message: "max_poll_errors cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateSynthesis() ValidationErrors {
	var errors ValidationErrors

	if c.Synthesis.RecordSizeRatio <= 0 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.synth_record_size_ratio",
			Message: "synth_record_size_ratio must be positive",
		})
	}

	for table, path := range c.Synthesis.TrainingConfigs {
		if path == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("synthesis.training_configs.%s", table),
				Message: "payload file path is empty",
			})
		}
	}

	return errors
}

func (c *Config) validateOutput() ValidationErrors {
	var errors ValidationErrors

	if c.Output.Dir == "" && !c.Output.WriteDatabase {
		errors = append(errors, ValidationError{
			Field:   "output",
			Message: "either output.dir or output.write_database must be set",
		})
	}

	if c.Output.InsertBatch < 0 {
		errors = append(errors, ValidationError{
			Field:   "output.insert_batch",
			Message: "insert_batch cannot be negative",
		})
	}

	validVerify := map[string]bool{"count": true, "sha256": true, "skip": true, "": true}
	if !validVerify[c.Output.Verify] {
		errors = append(errors, ValidationError{
			Field:   "output.verify",
			Message: fmt.Sprintf("invalid verification method '%s' (must be count, sha256, or skip)", c.Output.Verify),
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
