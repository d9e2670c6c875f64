// Package jobs defines the contract with the external training and generation
// service, together with an HTTP client and an in-process backend.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/dataset"
)

// Status is the lifecycle state of a remote job.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ParseStatus validates a status reported by a service.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusCreated, StatusPending, StatusActive, StatusCompleted, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// Terminal reports whether no further transitions will happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Kind selects what a job does.
type Kind string

const (
	KindTrain     Kind = "train"
	KindGenerate  Kind = "generate"
	KindTransform Kind = "transform"
)

// Handle identifies a submitted job.
type Handle string

// Spec describes a job submission.
type Spec struct {
	Kind  Kind
	Table string
	// Config is the opaque training config or transform policy.
	Config map[string]any
	// Data is uploaded for train and transform jobs.
	Data *dataset.Table
	// Model is the completed training job a generate or transform job runs against.
	Model Handle
	// Records is the number of rows a generate job must produce.
	Records int
}

// Validate checks that the fields required by Kind are set.
func (s Spec) Validate() error {
	if s.Table == "" {
		return errors.New("job spec has no table")
	}
	switch s.Kind {
	case KindTrain:
		if s.Data == nil {
			return fmt.Errorf("train job for %s has no data", s.Table)
		}
	case KindGenerate:
		if s.Model == "" {
			return fmt.Errorf("generate job for %s has no model", s.Table)
		}
		if s.Records < 0 {
			return fmt.Errorf("generate job for %s has negative record count", s.Table)
		}
	case KindTransform:
		if s.Model == "" || s.Data == nil {
			return fmt.Errorf("transform job for %s needs a model and data", s.Table)
		}
	default:
		return fmt.Errorf("unknown job kind %q", s.Kind)
	}
	return nil
}

// ErrUnknownJob is returned for handles the service has never issued.
var ErrUnknownJob = errors.New("unknown job")

// ErrNotReady is returned when a result is fetched before the job completed.
var ErrNotReady = errors.New("job result not ready")

// Service is the minimal contract the orchestrator drives.
type Service interface {
	Submit(ctx context.Context, spec Spec) (Handle, error)
	Poll(ctx context.Context, h Handle) (Status, error)
	// QualityScore returns the quality metric of a completed training job, if the service reports one.
	QualityScore(ctx context.Context, h Handle) (float64, bool, error)
	FetchResult(ctx context.Context, h Handle) (*dataset.Table, error)
}
