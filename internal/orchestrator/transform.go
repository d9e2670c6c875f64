package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/jobs"
)

// TransformInput is everything a transform run needs.
type TransformInput struct {
	Original *dataset.Dataset
	// Policies holds the transform policy per table. Tables without one are copied unchanged.
	Policies map[string]map[string]any
}

// TransformResult holds the transformed tables before key relabelling.
type TransformResult struct {
	RunID    string
	Tables   *dataset.Dataset // successful and copied tables, in original order
	HadError bool
	Failed   []*JobError
	Progress []TableProgress
	Duration time.Duration
}

// Transform runs a train then transform job for every table with a policy.
// A failing table is dropped from the result and reported in Failed; the
// other tables carry on. The returned error is reserved for submission and
// context failures.
func (o *Orchestrator) Transform(ctx context.Context, in TransformInput) (*TransformResult, error) {
	if in.Original == nil {
		return nil, fmt.Errorf("original dataset is nil")
	}

	started := o.now()
	run := newRun(ModeTransform)
	log := o.log.WithRun(run.ID)
	log.Infow("Starting transform", "tables", in.Original.Len(), "with_policy", len(in.Policies))

	second := make(map[string]jobs.Spec)
	for _, name := range in.Original.Names() {
		policy, ok := in.Policies[name]
		if !ok {
			continue
		}
		t, _ := in.Original.Get(name)
		if err := o.submitTrain(ctx, run, name, policy, t, t.Len()); err != nil {
			return nil, err
		}
		second[name] = jobs.Spec{
			Kind:   jobs.KindTransform,
			Table:  name,
			Config: policy,
			Data:   t,
		}
	}

	if err := o.loop(ctx, run, second); err != nil {
		return nil, err
	}

	res := &TransformResult{RunID: run.ID, Tables: dataset.New()}
	for _, name := range in.Original.Names() {
		tp, ok := run.Progress(name)
		if !ok {
			t, _ := in.Original.Get(name)
			res.Tables.Set(t.Clone())
			continue
		}
		if tp.Err != nil {
			res.HadError = true
			res.Failed = append(res.Failed, tp.Err)
			continue
		}
		res.Tables.Set(tp.Result)
	}
	res.Progress = run.Snapshot()
	res.Duration = o.now().Sub(started)

	if res.HadError {
		log.Warnw("Transform finished with errors", "failed", len(res.Failed), "tables", res.Tables.Len())
	} else {
		log.Infow("Transform complete", "tables", res.Tables.Len(), "duration", res.Duration)
	}
	return res, nil
}
