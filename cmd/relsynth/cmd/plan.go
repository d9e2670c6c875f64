package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/orchestrator"
	"github.com/dbsmedya/relsynth/internal/report"
)

var planRatio float64

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the relationships and row counts a run would use",
	Long: `Plan reflects the source database and displays what a synthesis run
would work with, without contacting the job service.

The plan shows:
  - Relation tree (referenced tables above the tables referencing them)
  - Primary keys and relationship groups
  - Tables whose primary key nobody references
  - Load order (parent tables first)
  - Source and target row count per table

Example:
  relsynth plan --config relsynth.yaml --ratio 2`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().Float64Var(&planRatio, "ratio", 0,
		"Override synth_record_size_ratio")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, log, ctx, stop, err := setup(config.Overrides{Ratio: planRatio})
	if err != nil {
		return err
	}
	defer stop()
	defer log.Sync()

	dbManager := database.NewManager(cfg)
	defer dbManager.Close()

	src, err := loadSource(ctx, dbManager, log, "")
	if err != nil {
		return err
	}

	excluded := make(map[string]bool)
	for _, t := range cfg.Synthesis.TablesToNotSynthesize {
		if _, ok := src.original.Get(t); !ok {
			return fmt.Errorf("excluded table %q is not in the source database", t)
		}
		excluded[t] = true
	}
	counts, err := orchestrator.ComputeRecordCounts(src.original, excluded, cfg.Synthesis.RecordSizeRatio)
	if err != nil {
		return err
	}

	newPrinter().Plan(report.PlanInput{
		Source:   describeSource(&cfg.Source),
		Graph:    src.graph,
		Original: src.original,
		Counts:   counts,
		Excluded: excluded,
		Ratio:    cfg.Synthesis.RecordSizeRatio,
	})
	return nil
}

// describeSource names a database without its credentials.
func describeSource(db *config.DatabaseConfig) string {
	if db.Path != "" {
		return db.Driver + ":" + db.Path
	}
	return fmt.Sprintf("%s://%s:%d/%s", db.Driver, db.Host, db.Port, db.Database)
}
