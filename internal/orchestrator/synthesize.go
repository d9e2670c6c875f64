package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
	"github.com/dbsmedya/relsynth/internal/jobs"
)

// SynthesisInput is everything a synthesis run needs.
type SynthesisInput struct {
	Graph    *graph.RelationshipGraph
	Original *dataset.Dataset
	// Excluded tables bypass the job service; their original rows are reused.
	Excluded []string
	Ratio    float64
	// Configs holds the training config per table. Missing tables get an empty config.
	Configs map[string]map[string]any
}

// SynthesisResult holds the generated tables before key synthesis.
type SynthesisResult struct {
	RunID    string
	Tables   *dataset.Dataset // in original table order, excluded tables included
	Counts   RecordCounts
	Excluded []string
	Progress []TableProgress
	Duration time.Duration
}

// Synthesize trains a model per non-excluded table, generates the target
// number of rows from it and returns the generated tables. The first table
// that fails aborts the run with a *JobError and no tables are returned.
func (o *Orchestrator) Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisResult, error) {
	if in.Graph == nil {
		return nil, fmt.Errorf("relationship graph is nil")
	}
	if in.Original == nil {
		return nil, fmt.Errorf("original dataset is nil")
	}

	excluded := make(map[string]bool, len(in.Excluded))
	for _, t := range in.Excluded {
		if _, ok := in.Original.Get(t); !ok {
			return nil, fmt.Errorf("excluded table %q is not in the dataset", t)
		}
		excluded[t] = true
	}

	counts, err := ComputeRecordCounts(in.Original, excluded, in.Ratio)
	if err != nil {
		return nil, err
	}

	started := o.now()
	run := newRun(ModeSynthesize)
	log := o.log.WithRun(run.ID)
	log.Infow("Starting synthesis", "tables", in.Original.Len(), "excluded", in.Excluded, "ratio", in.Ratio)

	second := make(map[string]jobs.Spec)
	for _, name := range in.Original.Names() {
		if excluded[name] {
			log.WithTable(name).Infow("Table excluded from synthesis, keeping original rows")
			continue
		}
		t, _ := in.Original.Get(name)
		if t.Len() == 0 {
			log.WithTable(name).Infow("Table is empty, nothing to synthesize")
			continue
		}
		training := PrepareTrainingData(in.Graph, t)
		if err := o.submitTrain(ctx, run, name, in.Configs[name], training, counts[name]); err != nil {
			return nil, err
		}
		second[name] = jobs.Spec{
			Kind:    jobs.KindGenerate,
			Table:   name,
			Config:  in.Configs[name],
			Records: counts[name],
		}
	}

	if err := o.loop(ctx, run, second); err != nil {
		return nil, err
	}

	out := dataset.New()
	for _, name := range in.Original.Names() {
		tp, ok := run.Progress(name)
		if !ok {
			t, _ := in.Original.Get(name)
			out.Set(t.Clone())
			continue
		}
		out.Set(tp.Result)
	}

	res := &SynthesisResult{
		RunID:    run.ID,
		Tables:   out,
		Counts:   counts,
		Excluded: in.Excluded,
		Progress: run.Snapshot(),
		Duration: o.now().Sub(started),
	}
	log.Infow("Model training and generation complete", "tables", out.Len(), "duration", res.Duration)
	return res, nil
}
