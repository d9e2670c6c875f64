package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/keys"
	"github.com/dbsmedya/relsynth/internal/orchestrator"
	"github.com/dbsmedya/relsynth/internal/verifier"
)

var (
	transformOut     string
	transformWriteDB bool
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform tables through the job service and relabel their keys",
	Long: `Transform runs a train then transform job for every table that has a
policy in transform.policies. Tables without a policy are copied unchanged.
Afterwards every relationship group is relabelled through one label encoder
fitted on the original key values, so joins between tables still hold.

A table whose job fails is left out of the output. The remaining tables are
still written, and the command exits with an error.

Example:
  relsynth transform --config relsynth.yaml --out ./transformed`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringVar(&transformOut, "out", "",
		"Override output directory for CSV files")
	transformCmd.Flags().BoolVar(&transformWriteDB, "write-db", false,
		"Write the result to the destination database")

	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	cfg, log, ctx, stop, err := setup(config.Overrides{
		OutputDir: transformOut,
		WriteDB:   transformWriteDB,
	})
	if err != nil {
		return err
	}
	defer stop()
	defer log.Sync()

	log.Infow("Starting transform", "config", GetConfigFile())

	dbManager := database.NewManager(cfg)
	defer dbManager.Close()

	src, err := loadSource(ctx, dbManager, log, cfg.Transform.WorkDir)
	if err != nil {
		return err
	}

	policies, err := loadPayloads(src.original.Names(), cfg.Transform.GetPolicy)
	if err != nil {
		return fmt.Errorf("failed to load transform policies: %w", err)
	}
	for t := range cfg.Transform.Policies {
		if _, ok := src.original.Get(t); !ok {
			return fmt.Errorf("transform policy names unknown table %q", t)
		}
	}

	svc, err := newJobService(&cfg.JobService)
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(svc, orchestrator.OptionsFromConfig(&cfg.JobService), log)
	if err != nil {
		return err
	}

	res, err := orch.Transform(ctx, orchestrator.TransformInput{
		Original: src.original,
		Policies: policies,
	})
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}

	keyTransformer := keys.NewTransformer(src.graph)
	if err := keyTransformer.Transform(res.Tables, src.original); err != nil {
		return fmt.Errorf("key transform failed: %w", err)
	}
	for _, ref := range keyTransformer.KeptOriginal() {
		log.WithTable(ref.Table).Warnw("Key column keeps its original values because a related table failed",
			"column", ref.Column)
	}

	p := newPrinter()
	p.Transform(res)

	v, err := verifier.New(src.graph, log)
	if err != nil {
		return err
	}
	check := v.Check(res.Tables, verifier.Options{AllowMissingTables: res.HadError})
	p.Verification("Integrity", check)
	if err := check.Err(); err != nil {
		return err
	}

	if res.HadError && cfg.Output.WriteDatabase && cfg.Output.CloneSource {
		for _, je := range res.Failed {
			log.WithTable(je.Table).Warn("Table failed to transform, the cloned destination keeps its original rows")
		}
	}
	if err := writeOutputs(ctx, cfg, dbManager, src.graph, res.Tables, log, p); err != nil {
		return err
	}

	if res.HadError {
		return fmt.Errorf("transform completed with errors: %d table(s) failed", len(res.Failed))
	}
	return nil
}
