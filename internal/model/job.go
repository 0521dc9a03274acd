package model

import "time"

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further mutation is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next follows
// pending -> processing -> (completed | failed). A pending job may fail
// before it starts but never completes without processing first.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// Predecessors lists the states a job may be in when it moves to s.
func (s JobStatus) Predecessors() []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed} {
		if from.CanTransition(s) {
			out = append(out, from)
		}
	}
	return out
}

// Job is the persisted record of one asynchronous campaign generation.
type Job struct {
	ID          string            `json:"id"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep string            `json:"current_step"`
	Request     GenerationRequest `json:"request"`
	Result      *Campaign         `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// JobView is the polling response for a job.
type JobView struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"current_step"`
	Result      *Campaign `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// View projects a job into its polling response.
func (j *Job) View() JobView {
	return JobView{
		JobID:       j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		Result:      j.Result,
		Error:       j.Error,
	}
}

// DraftStatus is the state of the campaign draft linked to a job.
type DraftStatus string

const (
	DraftStatusGenerating DraftStatus = "generating"
	DraftStatusReady      DraftStatus = "ready"
	DraftStatusFailed     DraftStatus = "failed"
)

// Draft is the campaign record created alongside a job and kept consistent with it.
type Draft struct {
	ID         string      `json:"id"`
	JobID      string      `json:"job_id"`
	ProductURL string      `json:"product_url"`
	Status     DraftStatus `json:"status"`
	Campaign   *Campaign   `json:"campaign,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
