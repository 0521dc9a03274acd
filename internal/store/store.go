// Package store persists generation jobs and their campaign drafts.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/model"
)

var (
	// ErrNotFound is returned when a job or draft does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrStale is returned when a status transition targets a job that has
	// already moved past the expected state.
	ErrStale = eris.New("store: job not in an updatable state")
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for jobs and drafts. Status
// transitions are guarded in SQL: terminal jobs are never modified and
// progress never decreases.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, req model.GenerationRequest) (*model.Job, error)
	MarkJobProcessing(ctx context.Context, id, step string) error
	UpdateJobProgress(ctx context.Context, id string, progress int, step string) error
	CompleteJob(ctx context.Context, id string, result *model.Campaign) error
	FailJob(ctx context.Context, id, message string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Drafts
	CreateDraft(ctx context.Context, jobID, productURL string) (*model.Draft, error)
	UpdateDraft(ctx context.Context, jobID string, status model.DraftStatus, campaign *model.Campaign) error
	GetDraftByJob(ctx context.Context, jobID string) (*model.Draft, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 100
	stepQueued       = "Queued"
	stepCompleted    = "Completed"
	stepFailed       = "Failed"
)

func listLimit(f JobFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// statusGuard renders the SQL predicate admitting only jobs that may move to next.
func statusGuard(next model.JobStatus) string {
	from := next.Predecessors()
	quoted := make([]string, len(from))
	for i, st := range from {
		quoted[i] = "'" + string(st) + "'"
	}
	return "status IN (" + strings.Join(quoted, ", ") + ")"
}
