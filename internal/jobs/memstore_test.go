package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/store"
)

// memStore is an in-memory store.Store with the same transition guards as
// the SQL stores. It records every applied progress value per job.
type memStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	drafts   map[string]*model.Draft
	history  map[string][]int
	draftErr error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[string]*model.Job),
		drafts:  make(map[string]*model.Draft),
		history: make(map[string][]int),
	}
}

func (m *memStore) CreateJob(_ context.Context, req model.GenerationRequest) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	j := &model.Job{ID: uuid.NewString(), Status: model.JobStatusPending, CurrentStep: "Queued", Request: req, CreatedAt: now, UpdatedAt: now}
	m.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

func (m *memStore) transition(id string, next model.JobStatus, apply func(*model.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return eris.Wrapf(store.ErrNotFound, "mem: job %s", id)
	}
	if !j.Status.CanTransition(next) {
		return eris.Wrapf(store.ErrStale, "mem: job %s", id)
	}
	apply(j)
	j.Status = next
	return nil
}

func (m *memStore) MarkJobProcessing(_ context.Context, id, step string) error {
	return m.transition(id, model.JobStatusProcessing, func(j *model.Job) {
		j.CurrentStep = step
	})
}

func (m *memStore) UpdateJobProgress(_ context.Context, id string, progress int, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusProcessing || progress < j.Progress {
		return nil
	}
	j.Progress = progress
	j.CurrentStep = step
	m.history[id] = append(m.history[id], progress)
	return nil
}

func (m *memStore) CompleteJob(_ context.Context, id string, result *model.Campaign) error {
	err := m.transition(id, model.JobStatusCompleted, func(j *model.Job) {
		now := time.Now().UTC()
		j.Progress = 100
		j.CurrentStep = "Completed"
		j.Result = result
		j.CompletedAt = &now
	})
	if err == nil {
		m.mu.Lock()
		m.history[id] = append(m.history[id], 100)
		m.mu.Unlock()
	}
	return err
}

func (m *memStore) FailJob(_ context.Context, id, message string) error {
	return m.transition(id, model.JobStatusFailed, func(j *model.Job) {
		now := time.Now().UTC()
		j.CurrentStep = "Failed"
		j.Error = message
		j.CompletedAt = &now
	})
}

func (m *memStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "mem: job %s", id)
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListJobs(_ context.Context, filter store.JobFilter) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Job
	for _, j := range m.jobs {
		if filter.Status == "" || j.Status == filter.Status {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memStore) CreateDraft(_ context.Context, jobID, productURL string) (*model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draftErr != nil {
		return nil, m.draftErr
	}
	d := &model.Draft{ID: uuid.NewString(), JobID: jobID, ProductURL: productURL, Status: model.DraftStatusGenerating}
	m.drafts[jobID] = d
	cp := *d
	return &cp, nil
}

func (m *memStore) UpdateDraft(_ context.Context, jobID string, status model.DraftStatus, campaign *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[jobID]
	if !ok {
		return eris.Wrapf(store.ErrNotFound, "mem: draft %s", jobID)
	}
	d.Status = status
	if campaign != nil {
		d.Campaign = campaign
	}
	return nil
}

func (m *memStore) GetDraftByJob(_ context.Context, jobID string) (*model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[jobID]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "mem: draft %s", jobID)
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) progressHistory(id string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.history[id]...)
}
