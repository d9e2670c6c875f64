// Package orchestrator drives per-table train and generate jobs on a job
// service until every table has finished.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/jobs"
	"github.com/dbsmedya/relsynth/internal/logger"
)

// Orchestrator submits and polls jobs. It is single-threaded: one loop polls
// every table round-robin and is the only writer of the run state.
type Orchestrator struct {
	svc  jobs.Service
	opts Options
	log  *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator. A nil logger falls back to the default logger.
func New(svc jobs.Service, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if svc == nil {
		return nil, fmt.Errorf("job service is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Orchestrator{
		svc:   svc,
		opts:  opts.withDefaults(),
		log:   log,
		now:   time.Now,
		sleep: sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// submitTrain starts the training job of a table and registers it in the run.
func (o *Orchestrator) submitTrain(ctx context.Context, run *Run, table string, cfg map[string]any, data *dataset.Table, records int) error {
	h, err := o.svc.Submit(ctx, jobs.Spec{
		Kind:   jobs.KindTrain,
		Table:  table,
		Config: cfg,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to submit training job for %s: %w", table, err)
	}

	now := o.now()
	run.add(&TableProgress{
		Table:   table,
		Records: records,
		Outcome: OutcomeRunning,
		Train: PhaseState{
			Handle:      h,
			Status:      jobs.StatusCreated,
			SubmittedAt: now,
			Interval:    o.opts.PollInterval,
			NextPoll:    now.Add(o.opts.PollInterval),
		},
	})
	o.log.WithRun(run.ID).WithTable(table).Infow("Model training started", "job", h)
	return nil
}

// loop polls until no table is running. In synthesis mode it returns the
// first table failure; in transform mode failures are only recorded.
func (o *Orchestrator) loop(ctx context.Context, run *Run, second map[string]jobs.Spec) error {
	for {
		active := run.active()
		if len(active) == 0 {
			return nil
		}

		for _, tp := range active {
			if err := ctx.Err(); err != nil {
				return err
			}
			if o.now().Before(tp.current().NextPoll) {
				continue
			}
			if err := o.step(ctx, run, tp, second[tp.Table]); err != nil {
				return err
			}
			if tp.Err != nil && run.Mode == ModeSynthesize {
				return tp.Err
			}
		}

		wake, ok := run.nextWake()
		if !ok {
			return nil
		}
		if err := o.sleep(ctx, wake.Sub(o.now())); err != nil {
			return err
		}
	}
}

// step polls the current phase of one table once and advances its state.
// Only submission and context errors are returned.
func (o *Orchestrator) step(ctx context.Context, run *Run, tp *TableProgress, next jobs.Spec) error {
	phase := PhaseTrain
	if tp.Generate.submitted() {
		phase = secondPhase(run.Mode)
	}
	ps := tp.current()
	log := o.log.WithRun(run.ID).WithTable(tp.Table).WithPhase(string(phase))

	st, err := o.svc.Poll(ctx, ps.Handle)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		ps.PollErrors++
		if ps.PollErrors > o.opts.MaxPollErrors {
			o.fail(tp, phase, OutcomeFailed, ErrJobFailed, fmt.Errorf("%d consecutive poll errors: %w", ps.PollErrors, err))
			log.Errorw("Giving up on job after poll errors", "job", ps.Handle, "error", err)
			return nil
		}
		log.Warnw("Poll failed, will retry", "job", ps.Handle, "attempt", ps.PollErrors, "error", err)
		o.schedule(ps, false)
		return nil
	}

	ps.PollErrors = 0
	ps.Polls++
	changed := st != ps.Status
	ps.Status = st

	switch st {
	case jobs.StatusError:
		o.fail(tp, phase, OutcomeFailed, ErrJobFailed, nil)
		log.Errorw("Job ended in error", "job", ps.Handle)
		return nil

	case jobs.StatusCompleted:
		if phase == PhaseTrain {
			log.Infow("Training completed", "job", ps.Handle)
			o.logQuality(ctx, log, ps.Handle)
			return o.submitSecond(ctx, log, tp, next, ps.Handle)
		}
		return o.collect(ctx, log, tp, phase)
	}

	if o.exhausted(ps) {
		o.fail(tp, phase, OutcomeTimeout, ErrJobTimeout, nil)
		log.Errorw("Job exceeded its polling budget", "job", ps.Handle, "polls", ps.Polls, "status", st)
		return nil
	}

	if changed {
		log.Debugw("Job status changed", "job", ps.Handle, "status", st)
	}
	o.schedule(ps, changed)
	return nil
}

// submitSecond starts the generate or transform job once training has completed.
func (o *Orchestrator) submitSecond(ctx context.Context, log *logger.Logger, tp *TableProgress, spec jobs.Spec, model jobs.Handle) error {
	spec.Model = model
	h, err := o.svc.Submit(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to submit %s job for %s: %w", spec.Kind, tp.Table, err)
	}

	now := o.now()
	tp.Generate = PhaseState{
		Handle:      h,
		Status:      jobs.StatusPending,
		SubmittedAt: now,
		Interval:    o.opts.PollInterval,
		NextPoll:    now.Add(o.opts.PollInterval),
	}
	log.Infow("Generation started", "job", h, "kind", spec.Kind)
	return nil
}

// collect fetches the output of a completed generate or transform job.
func (o *Orchestrator) collect(ctx context.Context, log *logger.Logger, tp *TableProgress, phase Phase) error {
	t, err := o.svc.FetchResult(ctx, tp.Generate.Handle)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		o.fail(tp, phase, OutcomeFailed, ErrJobFailed, fmt.Errorf("fetch result: %w", err))
		log.Errorw("Failed to fetch job result", "job", tp.Generate.Handle, "error", err)
		return nil
	}

	t.Name = tp.Table
	tp.Result = t
	tp.Outcome = OutcomeCompleted
	log.Infow("Generation completed", "job", tp.Generate.Handle, "rows", t.Len())
	return nil
}

func (o *Orchestrator) logQuality(ctx context.Context, log *logger.Logger, h jobs.Handle) {
	score, ok, err := o.svc.QualityScore(ctx, h)
	if err != nil {
		log.Warnw("Could not read quality score", "job", h, "error", err)
		return
	}
	if !ok {
		return
	}
	log.Infow("Synthetic data quality", "score", score, "rating", QualityRating(score))
}

func (o *Orchestrator) exhausted(ps *PhaseState) bool {
	if o.opts.MaxPolls > 0 && ps.Polls >= o.opts.MaxPolls {
		return true
	}
	if o.opts.JobTimeout > 0 && o.now().Sub(ps.SubmittedAt) >= o.opts.JobTimeout {
		return true
	}
	return false
}

// schedule sets the next poll time. The interval resets when the status changed
// and backs off otherwise.
func (o *Orchestrator) schedule(ps *PhaseState, changed bool) {
	if changed {
		ps.Interval = o.opts.PollInterval
	} else {
		ps.Interval = o.opts.nextInterval(ps.Interval)
	}
	ps.NextPoll = o.now().Add(ps.Interval)
}

func (o *Orchestrator) fail(tp *TableProgress, phase Phase, outcome Outcome, kind, cause error) {
	tp.Outcome = outcome
	tp.Err = &JobError{
		Table:  tp.Table,
		Phase:  phase,
		Handle: tp.current().Handle,
		Kind:   kind,
		Cause:  cause,
	}
}

func secondPhase(m Mode) Phase {
	if m == ModeTransform {
		return PhaseTransform
	}
	return PhaseGenerate
}

// IsJobError reports whether err carries a *JobError.
func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}
