package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/db"
	"github.com/sells-group/campaign-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string, cfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'pending',
	progress     INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
	current_step TEXT NOT NULL DEFAULT '',
	request      JSONB NOT NULL,
	result       JSONB,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS drafts (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL UNIQUE REFERENCES jobs(id),
	product_url TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'generating',
	campaign    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the jobs and drafts tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, req model.GenerationRequest) (*model.Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	job := &model.Job{
		ID:          uuid.NewString(),
		Status:      model.JobStatusPending,
		CurrentStep: stepQueued,
		Request:     req,
		CreatedAt:   time.Now().UTC(),
	}
	job.UpdatedAt = job.CreatedAt

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, progress, current_step, request, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, string(job.Status), 0, job.CurrentStep, reqJSON, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return job, nil
}

func (s *PostgresStore) MarkJobProcessing(ctx context.Context, id, step string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'processing', current_step = $1, updated_at = $2 WHERE id = $3 AND `+statusGuard(model.JobStatusProcessing),
		step, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark job processing %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrStale, "postgres: mark job processing %s", id)
	}
	return nil
}

// UpdateJobProgress is a no-op when the job is terminal or already past progress.
func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id string, progress int, step string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = $1, current_step = $2, updated_at = $3 WHERE id = $4 AND status = 'processing' AND progress <= $1`,
		progress, step, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: update job progress %s", id)
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id string, result *model.Campaign) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', progress = 100, current_step = $1, result = $2, completed_at = $3, updated_at = $3 WHERE id = $4 AND `+statusGuard(model.JobStatusCompleted),
		stepCompleted, resultJSON, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrStale, "postgres: complete job %s", id)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', current_step = $1, error = $2, completed_at = $3, updated_at = $3 WHERE id = $4 AND `+statusGuard(model.JobStatusFailed),
		stepFailed, message, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrStale, "postgres: fail job %s", id)
	}
	return nil
}

const pgJobColumns = `id, status, progress, current_step, request, result, error, created_at, updated_at, completed_at`

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanPgJob(s.pool.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + pgJobColumns + ` FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status string
	var reqJSON, resultJSON []byte
	var errMsg *string

	if err := row.Scan(&j.ID, &status, &j.Progress, &j.CurrentStep, &reqJSON, &resultJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if errMsg != nil {
		j.Error = *errMsg
	}
	if err := json.Unmarshal(reqJSON, &j.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if len(resultJSON) > 0 {
		j.Result = &model.Campaign{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &j, nil
}

func (s *PostgresStore) CreateDraft(ctx context.Context, jobID, productURL string) (*model.Draft, error) {
	d := &model.Draft{
		ID:         uuid.NewString(),
		JobID:      jobID,
		ProductURL: productURL,
		Status:     model.DraftStatusGenerating,
		CreatedAt:  time.Now().UTC(),
	}
	d.UpdatedAt = d.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO drafts (id, job_id, product_url, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.JobID, d.ProductURL, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert draft for job %s", jobID)
	}
	return d, nil
}

func (s *PostgresStore) UpdateDraft(ctx context.Context, jobID string, status model.DraftStatus, campaign *model.Campaign) error {
	var campaignJSON []byte
	if campaign != nil {
		var err error
		if campaignJSON, err = json.Marshal(campaign); err != nil {
			return eris.Wrap(err, "postgres: marshal campaign")
		}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET status = $1, campaign = COALESCE($2, campaign), updated_at = $3 WHERE job_id = $4`,
		string(status), campaignJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update draft for job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update draft for job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetDraftByJob(ctx context.Context, jobID string) (*model.Draft, error) {
	var d model.Draft
	var status string
	var campaignJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_id, product_url, status, campaign, created_at, updated_at FROM drafts WHERE job_id = $1`,
		jobID,
	).Scan(&d.ID, &d.JobID, &d.ProductURL, &status, &campaignJSON, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get draft for job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get draft for job %s", jobID)
	}
	d.Status = model.DraftStatus(status)
	if len(campaignJSON) > 0 {
		d.Campaign = &model.Campaign{}
		if err := json.Unmarshal(campaignJSON, d.Campaign); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal campaign")
		}
	}
	return &d, nil
}
