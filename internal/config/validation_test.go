package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Source = DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "pass",
		Database: "shop",
	}
	cfg.JobService.Endpoint = "https://jobs.example.com"
	return cfg
}

func TestValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestValidSQLiteConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Source = DatabaseConfig{Driver: "sqlite", Path: "shop.db"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing source host", func(c *Config) { c.Source.Host = "" }, "source.host"},
		{"bad source port", func(c *Config) { c.Source.Port = 70000 }, "source.port"},
		{"unknown driver", func(c *Config) { c.Source.Driver = "oracle" }, "source.driver"},
		{"sqlite without path", func(c *Config) { c.Source = DatabaseConfig{Driver: "sqlite"} }, "source.path"},
		{"bad tls", func(c *Config) { c.Source.TLS = "maybe" }, "source.tls"},
		{"destination checked when writing", func(c *Config) { c.Output.WriteDatabase = true }, "destination.host"},
		{"clone with mismatched driver", func(c *Config) {
			c.Output.WriteDatabase = true
			c.Output.CloneSource = true
			c.Destination = DatabaseConfig{Driver: "sqlite", Path: "copy.db"}
		}, "output.clone_source"},
		{"http backend without endpoint", func(c *Config) { c.JobService.Endpoint = "" }, "job_service.endpoint"},
		{"unknown backend", func(c *Config) { c.JobService.Backend = "grpc" }, "job_service.backend"},
		{"negative poll interval", func(c *Config) { c.JobService.PollInterval = -1 }, "job_service.poll_interval"},
		{"backoff below one", func(c *Config) { c.JobService.BackoffFactor = 0.5 }, "job_service.backoff_factor"},
		{"max interval below interval", func(c *Config) { c.JobService.MaxPollInterval = 1 }, "job_service.max_poll_interval"},
		{"negative max polls", func(c *Config) { c.JobService.MaxPolls = -1 }, "job_service.max_polls"},
		{"negative timeout", func(c *Config) { c.JobService.JobTimeout = -5 }, "job_service.job_timeout"},
		{"zero ratio", func(c *Config) { c.Synthesis.RecordSizeRatio = 0 }, "synthesis.synth_record_size_ratio"},
		{"empty payload path", func(c *Config) {
			c.Synthesis.TrainingConfigs = map[string]string{"orders": ""}
		}, "synthesis.training_configs.orders"},
		{"no output", func(c *Config) { c.Output.Dir = "" }, "output"},
		{"bad verify method", func(c *Config) { c.Output.Verify = "md5" }, "output.verify"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}

			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidationErrorsFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "source.host", Message: "host is required"},
		{Field: "logging.level", Message: "bad"},
	}

	msg := errs.Error()
	if !strings.HasPrefix(msg, "validation failed:") {
		t.Errorf("unexpected prefix: %s", msg)
	}
	if !strings.Contains(msg, "source.host: host is required") {
		t.Errorf("missing field message: %s", msg)
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("empty errors should format as empty string")
	}
}
