package orchestrator

import (
	"errors"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/jobs"
)

var (
	// ErrJobFailed is matched by a JobError whose job ended in error.
	ErrJobFailed = errors.New("job failed")
	// ErrJobTimeout is matched by a JobError whose job exceeded max_polls or job_timeout.
	ErrJobTimeout = errors.New("job timed out")
)

// JobError reports the failure of one table's job.
type JobError struct {
	Table  string
	Phase  Phase
	Handle jobs.Handle
	Kind   error // ErrJobFailed or ErrJobTimeout
	Cause  error // underlying poll or fetch error, if any
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("%s job for table %s", e.Phase, e.Table)
	if e.Handle != "" {
		msg += fmt.Sprintf(" (%s)", e.Handle)
	}
	msg += ": " + e.Kind.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *JobError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}
