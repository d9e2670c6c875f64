package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/graph"
)

var validateConnect bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate checks the configuration file and the payload files it names.

Checks performed:
  - Configuration syntax and required fields
  - Training config and transform policy files decode
With --connect, additionally:
  - Source connectivity and schema reflection
  - Excluded tables and policy tables exist
  - Table dependencies are acyclic (reported as a warning)

Example:
  relsynth validate --config relsynth.yaml --connect`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateConnect, "connect", false,
		"Also connect to the source database and check table names")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p := newPrinter()
	p.Header("Configuration Validation")
	p.KV([2]string{"Config file", GetConfigFile()})

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(config.Overrides{LogLevel: logLevel, LogFormat: logFormat})

	p.Section("Fields")
	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				p.Line("%s %s", p.Status("failed"), ve.Error())
			}
		}
		return fmt.Errorf("configuration is invalid")
	}
	p.Line("%s all fields valid", p.Status("ok"))

	p.Section("Payload Files")
	hasErrors := false
	for _, set := range []struct {
		name  string
		paths map[string]string
	}{
		{"training_configs", withDefault(cfg.Synthesis.TrainingConfigs, cfg.Synthesis.DefaultTrainingConfig)},
		{"transform.policies", cfg.Transform.Policies},
	} {
		tables := sortedKeys(set.paths)
		if _, err := loadPayloads(tables, func(t string) string { return set.paths[t] }); err != nil {
			p.Line("%s %s: %v", p.Status("failed"), set.name, err)
			hasErrors = true
			continue
		}
		p.Line("%s %s: %d file(s)", p.Status("ok"), set.name, len(tables))
	}

	if validateConnect {
		if err := validateSource(cmd, cfg); err != nil {
			p.Line("%s %v", p.Status("failed"), err)
			hasErrors = true
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(outputWriter)
	p.Line("%s configuration is valid", p.Status("passed"))
	return nil
}

func validateSource(cmd *cobra.Command, cfg *config.Config) error {
	p := newPrinter()
	p.Section("Source")

	log, err := newQuietLogger(cfg)
	if err != nil {
		return err
	}
	dbManager := database.NewManager(cfg)
	defer dbManager.Close()

	src, err := loadSource(cmd.Context(), dbManager, log, "")
	if err != nil {
		return err
	}
	p.Line("%s reflected %d tables, %d groups", p.Status("ok"), len(src.schema.Tables), len(src.graph.Groups()))

	var missing []string
	for _, t := range cfg.Synthesis.TablesToNotSynthesize {
		if !src.graph.HasTable(t) {
			missing = append(missing, t)
		}
	}
	for _, t := range sortedKeys(cfg.Transform.Policies) {
		if !src.graph.HasTable(t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unknown tables in config: %v", missing)
	}

	var cycle *graph.CycleError
	if err := src.graph.Validate(); errors.As(err, &cycle) {
		p.Line("%s %v", p.Status("warning"), cycle)
	}
	return nil
}
