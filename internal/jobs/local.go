package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/dbsmedya/relsynth/internal/dataset"
)

// MaskValue replaces the cells of masked columns in local transform jobs.
const MaskValue = "*****"

// lifecycle is the sequence of statuses a local job reports, one per poll.
var lifecycle = []Status{StatusCreated, StatusPending, StatusActive, StatusCompleted}

type localJob struct {
	spec   Spec
	step   int
	pools  map[string][]any // train: observed values per column
	cols   []string
	score  float64
	result *dataset.Table
}

// Local runs jobs in-process. Training records the observed values of each
// column; generation samples every column independently from those values.
// Transform jobs return their input with the columns listed under the
// "mask" config key replaced by MaskValue.
type Local struct {
	mu   sync.Mutex
	rng  *rand.Rand
	jobs map[Handle]*localJob
	// Fail makes every job submitted for a table end in StatusError. Used to rehearse failures.
	Fail map[string]bool
}

// NewLocal creates an in-process backend sampling with the given seed.
func NewLocal(seed int64) *Local {
	return &Local{
		rng:  rand.New(rand.NewSource(seed)),
		jobs: make(map[Handle]*localJob),
		Fail: make(map[string]bool),
	}
}

// Submit registers the job. Work happens when the job completes on a later poll.
func (l *Local) Submit(ctx context.Context, spec Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if spec.Model != "" {
		model, ok := l.jobs[spec.Model]
		if !ok || model.spec.Kind != KindTrain {
			return "", fmt.Errorf("%w: model %s", ErrUnknownJob, spec.Model)
		}
	}

	h := Handle(uuid.NewString())
	l.jobs[h] = &localJob{spec: spec}
	return h, nil
}

// Poll advances the job one lifecycle step and reports the new status.
func (l *Local) Poll(ctx context.Context, h Handle) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	j, ok := l.jobs[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, h)
	}
	if j.step < len(lifecycle)-1 {
		j.step++
	}

	st := lifecycle[j.step]
	if st == StatusCompleted {
		if l.Fail[j.spec.Table] {
			return StatusError, nil
		}
		if err := l.complete(j); err != nil {
			return StatusError, nil
		}
	}
	return st, nil
}

// QualityScore reports the share of non-NULL cells in the training data, as a percentage.
func (l *Local) QualityScore(_ context.Context, h Handle) (float64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	j, ok := l.jobs[h]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownJob, h)
	}
	if j.spec.Kind != KindTrain || lifecycle[j.step] != StatusCompleted {
		return 0, false, nil
	}
	return j.score, true, nil
}

// FetchResult returns the output of a completed generate or transform job.
func (l *Local) FetchResult(_ context.Context, h Handle) (*dataset.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	j, ok := l.jobs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, h)
	}
	if j.result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, h)
	}
	return j.result.Clone(), nil
}

// complete does the job's work once. Callers hold l.mu.
func (l *Local) complete(j *localJob) error {
	if j.pools != nil || j.result != nil {
		return nil
	}

	switch j.spec.Kind {
	case KindTrain:
		l.train(j)
	case KindGenerate:
		j.result = l.generate(l.jobs[j.spec.Model], j.spec)
	case KindTransform:
		j.result = mask(j.spec.Data, maskedColumns(j.spec.Config))
	default:
		return fmt.Errorf("unknown job kind %q", j.spec.Kind)
	}
	return nil
}

func (l *Local) train(j *localJob) {
	data := j.spec.Data
	j.cols = append([]string(nil), data.Columns...)
	j.pools = make(map[string][]any, len(data.Columns))

	var cells, filled int
	for i, col := range data.Columns {
		pool := make([]any, 0, data.Len())
		for _, row := range data.Rows {
			cells++
			if row[i] != nil {
				filled++
			}
			pool = append(pool, row[i])
		}
		j.pools[col] = pool
	}

	j.score = 100
	if cells > 0 {
		j.score = 100 * float64(filled) / float64(cells)
	}
}

func (l *Local) generate(model *localJob, spec Spec) *dataset.Table {
	out := dataset.NewTable(spec.Table, model.cols)
	for r := 0; r < spec.Records; r++ {
		row := make([]any, len(model.cols))
		for i, col := range model.cols {
			if pool := model.pools[col]; len(pool) > 0 {
				row[i] = pool[l.rng.Intn(len(pool))]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func maskedColumns(cfg map[string]any) map[string]bool {
	out := make(map[string]bool)
	switch v := cfg["mask"].(type) {
	case []any:
		for _, c := range v {
			if s, ok := c.(string); ok {
				out[s] = true
			}
		}
	case []string:
		for _, s := range v {
			out[s] = true
		}
	}
	return out
}

func mask(t *dataset.Table, cols map[string]bool) *dataset.Table {
	out := t.Clone()
	for i, c := range out.Columns {
		if !cols[c] {
			continue
		}
		for _, row := range out.Rows {
			if row[i] != nil {
				row[i] = MaskValue
			}
		}
	}
	return out
}
