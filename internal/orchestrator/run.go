package orchestrator

import (
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/google/uuid"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/jobs"
)

// Mode selects the second phase of every table.
type Mode string

const (
	ModeSynthesize Mode = "synthesize"
	ModeTransform  Mode = "transform"
)

// Phase names one of the two jobs a table goes through.
type Phase string

const (
	PhaseTrain     Phase = "train"
	PhaseGenerate  Phase = "generate"
	PhaseTransform Phase = "transform"
)

// Outcome is where a table ended up.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
)

// PhaseState tracks one remote job.
type PhaseState struct {
	Handle      jobs.Handle
	Status      jobs.Status
	SubmittedAt time.Time
	Polls       int
	PollErrors  int // consecutive
	Interval    time.Duration
	NextPoll    time.Time
}

func (p PhaseState) submitted() bool {
	return p.Handle != ""
}

// TableProgress is the state machine value of one table.
type TableProgress struct {
	Table    string
	Records  int
	Train    PhaseState
	Generate PhaseState // generate or transform job
	Outcome  Outcome
	Result   *dataset.Table
	Err      *JobError
}

// Terminal reports whether the table needs no more polling.
func (tp *TableProgress) Terminal() bool {
	return tp.Outcome != OutcomeRunning
}

// current returns the phase that is being polled.
func (tp *TableProgress) current() *PhaseState {
	if tp.Generate.submitted() {
		return &tp.Generate
	}
	return &tp.Train
}

// Run holds the progress of every table in one orchestration. The poll loop is its only writer.
type Run struct {
	ID     string
	Mode   Mode
	tables *orderedmap.OrderedMap[string, *TableProgress]
}

func newRun(mode Mode) *Run {
	return &Run{
		ID:     uuid.NewString(),
		Mode:   mode,
		tables: orderedmap.NewOrderedMap[string, *TableProgress](),
	}
}

func (r *Run) add(tp *TableProgress) {
	r.tables.Set(tp.Table, tp)
}

// Progress returns the state of a table.
func (r *Run) Progress(table string) (*TableProgress, bool) {
	return r.tables.Get(table)
}

// Tables returns the tables in submission order.
func (r *Run) Tables() []string {
	return r.tables.Keys()
}

// active returns the non-terminal tables in submission order.
func (r *Run) active() []*TableProgress {
	var out []*TableProgress
	for el := r.tables.Front(); el != nil; el = el.Next() {
		if !el.Value.Terminal() {
			out = append(out, el.Value)
		}
	}
	return out
}

// nextWake returns the earliest scheduled poll among active tables.
func (r *Run) nextWake() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, tp := range r.active() {
		next := tp.current().NextPoll
		if !found || next.Before(earliest) {
			earliest = next
			found = true
		}
	}
	return earliest, found
}

// Snapshot copies the progress of every table, for reporting.
func (r *Run) Snapshot() []TableProgress {
	out := make([]TableProgress, 0, r.tables.Len())
	for el := r.tables.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value)
	}
	return out
}
