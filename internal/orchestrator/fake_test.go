package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/jobs"
	"github.com/dbsmedya/relsynth/internal/logger"
)

var defaultScript = []jobs.Status{jobs.StatusPending, jobs.StatusActive, jobs.StatusCompleted}

type fakeJob struct {
	spec   jobs.Spec
	script []jobs.Status
	next   int
	last   jobs.Status
}

// fakeService plays a scripted status sequence per table and job kind.
type fakeService struct {
	scripts    map[string][]jobs.Status // "table/kind"
	pollErrs   map[string]int           // "table/kind" -> failures before the first success
	scores     map[string]float64       // table -> training quality score
	submitErr  map[string]error         // "table/kind"
	fetchErr   map[string]error         // table
	jobs       map[jobs.Handle]*fakeJob
	submitted  []jobs.Spec
	violations []string
	seq        int
}

func newFakeService() *fakeService {
	return &fakeService{
		scripts:   make(map[string][]jobs.Status),
		pollErrs:  make(map[string]int),
		scores:    make(map[string]float64),
		submitErr: make(map[string]error),
		fetchErr:  make(map[string]error),
		jobs:      make(map[jobs.Handle]*fakeJob),
	}
}

func key(table string, kind jobs.Kind) string {
	return table + "/" + string(kind)
}

func (f *fakeService) Submit(_ context.Context, spec jobs.Spec) (jobs.Handle, error) {
	if err := f.submitErr[key(spec.Table, spec.Kind)]; err != nil {
		return "", err
	}
	if spec.Kind != jobs.KindTrain {
		model, ok := f.jobs[spec.Model]
		if !ok || model.last != jobs.StatusCompleted {
			f.violations = append(f.violations, fmt.Sprintf("%s submitted before training completed", spec.Table))
		}
	}

	f.seq++
	h := jobs.Handle(fmt.Sprintf("job-%d", f.seq))
	script, ok := f.scripts[key(spec.Table, spec.Kind)]
	if !ok {
		script = defaultScript
	}
	f.jobs[h] = &fakeJob{spec: spec, script: script, last: jobs.StatusCreated}
	f.submitted = append(f.submitted, spec)
	return h, nil
}

func (f *fakeService) Poll(_ context.Context, h jobs.Handle) (jobs.Status, error) {
	j := f.jobs[h]
	k := key(j.spec.Table, j.spec.Kind)
	if f.pollErrs[k] > 0 {
		f.pollErrs[k]--
		return "", errors.New("connection reset")
	}
	st := j.script[j.next]
	if j.next < len(j.script)-1 {
		j.next++
	}
	j.last = st
	return st, nil
}

func (f *fakeService) QualityScore(_ context.Context, h jobs.Handle) (float64, bool, error) {
	score, ok := f.scores[f.jobs[h].spec.Table]
	return score, ok, nil
}

func (f *fakeService) FetchResult(_ context.Context, h jobs.Handle) (*dataset.Table, error) {
	j := f.jobs[h]
	if err := f.fetchErr[j.spec.Table]; err != nil {
		return nil, err
	}
	if j.spec.Kind == jobs.KindTransform {
		return j.spec.Data.Clone(), nil
	}
	out := dataset.NewTable("result", []string{"value"})
	for i := 0; i < j.spec.Records; i++ {
		out.Rows = append(out.Rows, []any{fmt.Sprintf("synthetic-%d", i)})
	}
	return out, nil
}

func (f *fakeService) kinds() []string {
	var out []string
	for _, s := range f.submitted {
		out = append(out, key(s.Table, s.Kind))
	}
	return out
}

// fakeClock replaces wall time so polling never really sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func testOptions() Options {
	return Options{
		PollInterval:    time.Second,
		BackoffFactor:   2,
		MaxPollInterval: 4 * time.Second,
		MaxPollErrors:   3,
	}
}

func newTestOrchestrator(t *testing.T, svc jobs.Service, opts Options) (*Orchestrator, *fakeClock, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	o, err := New(svc, opts, logger.FromCore(core))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	o.now = clock.Now
	o.sleep = clock.Sleep
	return o, clock, logs
}
