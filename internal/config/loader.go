package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
// A .env file next to the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)
	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	for _, db := range []*DatabaseConfig{&cfg.Source, &cfg.Destination} {
		db.Host = expandEnvVar(db.Host)
		db.User = expandEnvVar(db.User)
		db.Password = expandEnvVar(db.Password)
		db.Database = expandEnvVar(db.Database)
		db.Path = expandEnvVar(db.Path)
	}

	cfg.JobService.Endpoint = expandEnvVar(cfg.JobService.Endpoint)
	cfg.JobService.APIKey = expandEnvVar(cfg.JobService.APIKey)

	cfg.Synthesis.WorkDir = expandEnvVar(cfg.Synthesis.WorkDir)
	cfg.Transform.WorkDir = expandEnvVar(cfg.Transform.WorkDir)
	cfg.Output.Dir = expandEnvVar(cfg.Output.Dir)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// Overrides contains CLI flag values that take precedence over the file.
type Overrides struct {
	LogLevel  string
	LogFormat string
	Ratio     float64
	Exclude   []string
	OutputDir string
	WriteDB   bool
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Ratio > 0 {
		c.Synthesis.RecordSizeRatio = o.Ratio
	}
	if len(o.Exclude) > 0 {
		c.Synthesis.TablesToNotSynthesize = append(c.Synthesis.TablesToNotSynthesize, o.Exclude...)
	}
	if o.OutputDir != "" {
		c.Output.Dir = o.OutputDir
	}
	if o.WriteDB {
		c.Output.WriteDatabase = true
	}
}
