package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/keys"
	"github.com/dbsmedya/relsynth/internal/orchestrator"
	"github.com/dbsmedya/relsynth/internal/verifier"
)

var (
	synthRatio   float64
	synthExclude []string
	synthOut     string
	synthWriteDB bool
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Generate a synthetic copy of the source database",
	Long: `Synthesize reflects the source database, trains a model per table on the
job service, generates synth_record_size_ratio times as many rows per table,
and rebuilds keys so every foreign key points at an existing synthetic row.

The process follows these steps:
  1. Reflect schema and read every table
  2. Strip key columns and submit a training job per table
  3. Poll until training completes, then submit generation
  4. Assign primary keys 0..N-1 and redistribute foreign keys
  5. Verify integrity, then write CSV files and/or the destination database

Tables listed in tables_to_not_synthesize keep their original rows.

Example:
  relsynth synthesize --config relsynth.yaml --ratio 0.5 --exclude audit_log`,
	RunE: runSynthesize,
}

func init() {
	synthesizeCmd.Flags().Float64Var(&synthRatio, "ratio", 0,
		"Override synth_record_size_ratio")
	synthesizeCmd.Flags().StringSliceVar(&synthExclude, "exclude", nil,
		"Additional tables to keep unsynthesized (comma separated)")
	synthesizeCmd.Flags().StringVar(&synthOut, "out", "",
		"Override output directory for CSV files")
	synthesizeCmd.Flags().BoolVar(&synthWriteDB, "write-db", false,
		"Write the result to the destination database")

	rootCmd.AddCommand(synthesizeCmd)
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	cfg, log, ctx, stop, err := setup(config.Overrides{
		Ratio:     synthRatio,
		Exclude:   synthExclude,
		OutputDir: synthOut,
		WriteDB:   synthWriteDB,
	})
	if err != nil {
		return err
	}
	defer stop()
	defer log.Sync()

	log.Infow("Starting synthesis", "config", GetConfigFile())

	dbManager := database.NewManager(cfg)
	defer dbManager.Close()

	src, err := loadSource(ctx, dbManager, log, cfg.Synthesis.WorkDir)
	if err != nil {
		return err
	}

	configs, err := loadPayloads(src.original.Names(), cfg.Synthesis.GetTrainingConfig)
	if err != nil {
		return fmt.Errorf("failed to load training configs: %w", err)
	}

	svc, err := newJobService(&cfg.JobService)
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(svc, orchestrator.OptionsFromConfig(&cfg.JobService), log)
	if err != nil {
		return err
	}

	res, err := orch.Synthesize(ctx, orchestrator.SynthesisInput{
		Graph:    src.graph,
		Original: src.original,
		Excluded: cfg.Synthesis.TablesToNotSynthesize,
		Ratio:    cfg.Synthesis.RecordSizeRatio,
		Configs:  configs,
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("Synthesis cancelled by user")
		}
		return fmt.Errorf("synthesis failed: %w", err)
	}

	seed := cfg.Synthesis.KeySeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	synth := keys.NewSynthesizer(src.graph, keys.SynthesizerOptions{
		Rand:     rand.New(rand.NewSource(seed)),
		Preserve: cfg.Synthesis.TablesToNotSynthesize,
	})
	if err := synth.Synthesize(res.Tables, src.original); err != nil {
		return fmt.Errorf("key synthesis failed: %w", err)
	}
	log.Infow("Keys synthesized", "seed", seed)

	p := newPrinter()
	p.Synthesis(res)

	v, err := verifier.New(src.graph, log)
	if err != nil {
		return err
	}
	check := v.Check(res.Tables, verifier.Options{
		DenseKeys: keyedTablesExcept(src.graph, cfg.Synthesis.TablesToNotSynthesize),
		Expected:  res.Counts,
	})
	p.Verification("Integrity", check)
	if err := check.Err(); err != nil {
		return err
	}

	return writeOutputs(ctx, cfg, dbManager, src.graph, res.Tables, log, p)
}
