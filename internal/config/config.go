// Package config provides configuration structures and loading for relsynth.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Source      DatabaseConfig   `yaml:"source" mapstructure:"source"`
	Destination DatabaseConfig   `yaml:"destination" mapstructure:"destination"`
	JobService  JobServiceConfig `yaml:"job_service" mapstructure:"job_service"`
	Synthesis   SynthesisConfig  `yaml:"synthesis" mapstructure:"synthesis"`
	Transform   TransformConfig  `yaml:"transform" mapstructure:"transform"`
	Output      OutputConfig     `yaml:"output" mapstructure:"output"`
	Logging     LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a database connection configuration.
// Path is only used by the sqlite driver.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"` // mysql, postgres, sqlite
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	Path               string `yaml:"path" mapstructure:"path"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// JobServiceConfig describes the external training/generation service and how it is polled.
type JobServiceConfig struct {
	Backend         string  `yaml:"backend" mapstructure:"backend"` // http or local
	Endpoint        string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	RequestTimeout  float64 `yaml:"request_timeout" mapstructure:"request_timeout"`     // seconds per HTTP request
	PollInterval    float64 `yaml:"poll_interval" mapstructure:"poll_interval"`         // seconds
	BackoffFactor   float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`       // multiplier while status is unchanged
	MaxPollInterval float64 `yaml:"max_poll_interval" mapstructure:"max_poll_interval"` // seconds
	MaxPolls        int     `yaml:"max_polls" mapstructure:"max_polls"`                 // per phase, 0 = unlimited
	JobTimeout      float64 `yaml:"job_timeout" mapstructure:"job_timeout"`             // seconds per phase, 0 = unlimited
	MaxPollErrors   int     `yaml:"max_poll_errors" mapstructure:"max_poll_errors"`     // consecutive poll failures tolerated
	Seed            int64   `yaml:"seed" mapstructure:"seed"`                           // local backend sampling seed
}

// SynthesisConfig controls the synthesis pipeline.
type SynthesisConfig struct {
	TablesToNotSynthesize []string          `yaml:"tables_to_not_synthesize" mapstructure:"tables_to_not_synthesize"`
	RecordSizeRatio       float64           `yaml:"synth_record_size_ratio" mapstructure:"synth_record_size_ratio"`
	DefaultTrainingConfig string            `yaml:"default_training_config" mapstructure:"default_training_config"`
	TrainingConfigs       map[string]string `yaml:"training_configs" mapstructure:"training_configs"` // table -> payload file
	KeySeed               int64             `yaml:"key_seed" mapstructure:"key_seed"`                 // 0 = time based
	WorkDir               string            `yaml:"work_dir" mapstructure:"work_dir"`
}

// TransformConfig controls the transform pipeline. Tables without a policy are copied unchanged.
type TransformConfig struct {
	Policies map[string]string `yaml:"policies" mapstructure:"policies"` // table -> policy file
	WorkDir  string            `yaml:"work_dir" mapstructure:"work_dir"`
}

// OutputConfig controls where final tables are written.
type OutputConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	WriteDatabase bool   `yaml:"write_database" mapstructure:"write_database"`
	CloneSource   bool   `yaml:"clone_source" mapstructure:"clone_source"`
	InsertBatch   int    `yaml:"insert_batch" mapstructure:"insert_batch"`
	Verify        string `yaml:"verify" mapstructure:"verify"` // count, sha256, or skip
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Driver:             "mysql",
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Destination: DatabaseConfig{
			Driver:             "mysql",
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		JobService: JobServiceConfig{
			Backend:         "http",
			RequestTimeout:  60,
			PollInterval:    5,
			BackoffFactor:   1.5,
			MaxPollInterval: 60,
			MaxPolls:        0,
			JobTimeout:      0,
			MaxPollErrors:   5,
		},
		Synthesis: SynthesisConfig{
			RecordSizeRatio: 1,
			WorkDir:         "./work",
		},
		Transform: TransformConfig{
			WorkDir: "./work",
		},
		Output: OutputConfig{
			Dir:         "./out",
			InsertBatch: 500,
			Verify:      "count",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// IsExcluded reports whether a table bypasses the synthesis job pipeline.
func (s *SynthesisConfig) IsExcluded(table string) bool {
	for _, t := range s.TablesToNotSynthesize {
		if t == table {
			return true
		}
	}
	return false
}

// GetTrainingConfig returns the payload file for a table, falling back to the default.
func (s *SynthesisConfig) GetTrainingConfig(table string) string {
	if path, ok := s.TrainingConfigs[table]; ok && path != "" {
		return path
	}
	return s.DefaultTrainingConfig
}

// GetPolicy returns the transform policy file for a table, or "" when the table is copied as-is.
func (t *TransformConfig) GetPolicy(table string) string {
	return t.Policies[table]
}

// seconds converts a float seconds value into a duration.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// PollIntervalDuration returns the initial poll interval.
func (j *JobServiceConfig) PollIntervalDuration() time.Duration { return seconds(j.PollInterval) }

// MaxPollIntervalDuration returns the backoff ceiling.
func (j *JobServiceConfig) MaxPollIntervalDuration() time.Duration { return seconds(j.MaxPollInterval) }

// JobTimeoutDuration returns the per-phase timeout, zero meaning none.
func (j *JobServiceConfig) JobTimeoutDuration() time.Duration { return seconds(j.JobTimeout) }

// RequestTimeoutDuration returns the HTTP request timeout.
func (j *JobServiceConfig) RequestTimeoutDuration() time.Duration { return seconds(j.RequestTimeout) }
