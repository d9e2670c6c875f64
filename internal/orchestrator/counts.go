package orchestrator

import (
	"fmt"
	"math"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
)

// RecordCounts maps a table to the number of rows it will have after synthesis.
type RecordCounts map[string]int

// ComputeRecordCounts scales every table by ratio. Excluded tables keep their
// size and a non-empty table never shrinks to zero rows.
func ComputeRecordCounts(ds *dataset.Dataset, excluded map[string]bool, ratio float64) (RecordCounts, error) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("synth_record_size_ratio must be a positive number, got %v", ratio)
	}

	counts := make(RecordCounts, ds.Len())
	err := ds.Each(func(t *dataset.Table) error {
		n := t.Len()
		if excluded[t.Name] || n == 0 {
			counts[t.Name] = n
			return nil
		}
		target := int(math.Round(float64(n) * ratio))
		if target < 1 {
			target = 1
		}
		counts[t.Name] = target
		return nil
	})
	return counts, err
}

// PrepareTrainingData returns a copy of the table with its key columns removed.
// Keys are rebuilt after generation so the model never sees them.
func PrepareTrainingData(g *graph.RelationshipGraph, t *dataset.Table) *dataset.Table {
	return t.Without(g.KeyColumns(t.Name)...)
}
