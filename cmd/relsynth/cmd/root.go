package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/relsynth/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	noColor   bool
)

// outputWriter receives reports; tests replace it.
var outputWriter io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "relsynth",
	Short: "Relational synthetic data orchestrator",
	Long: `relsynth reflects a relational database, drives an external job service to
train a model and generate synthetic rows per table, and rebuilds primary and
foreign keys so the result keeps referential integrity and the average number
of children per parent.

A transform mode relabels keys of tables transformed by the service through
a shared label encoder, so joins between transformed tables still hold.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "relsynth.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable coloured report output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the config file, applies flag overrides and validates the result.
func loadConfig(o config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	o.LogLevel = logLevel
	o.LogFormat = logFormat
	cfg.ApplyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
