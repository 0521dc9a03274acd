package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/campaign-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'pending',
	progress     INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
	current_step TEXT NOT NULL DEFAULT '',
	request      TEXT NOT NULL,
	result       TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

CREATE TABLE IF NOT EXISTS drafts (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL UNIQUE REFERENCES jobs(id),
	product_url TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'generating',
	campaign    TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the jobs and drafts tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, req model.GenerationRequest) (*model.Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	job := &model.Job{
		ID:          uuid.NewString(),
		Status:      model.JobStatusPending,
		CurrentStep: stepQueued,
		Request:     req,
		CreatedAt:   time.Now().UTC(),
	}
	job.UpdatedAt = job.CreatedAt

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, progress, current_step, request, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), 0, job.CurrentStep, string(reqJSON), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) MarkJobProcessing(ctx context.Context, id, step string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'processing', current_step = ?, updated_at = ? WHERE id = ? AND `+statusGuard(model.JobStatusProcessing),
		step, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job processing %s", id)
	}
	return checkTransition(res, "sqlite: mark job processing "+id)
}

// UpdateJobProgress is a no-op when the job is terminal or already past progress.
func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, id string, progress int, step string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ?1, current_step = ?2, updated_at = ?3 WHERE id = ?4 AND status = 'processing' AND progress <= ?1`,
		progress, step, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: update job progress %s", id)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string, result *model.Campaign) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', progress = 100, current_step = ?, result = ?, completed_at = ?, updated_at = ? WHERE id = ? AND `+statusGuard(model.JobStatusCompleted),
		stepCompleted, string(resultJSON), now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return checkTransition(res, "sqlite: complete job "+id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', current_step = ?, error = ?, completed_at = ?, updated_at = ? WHERE id = ? AND `+statusGuard(model.JobStatusFailed),
		stepFailed, message, now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", id)
	}
	return checkTransition(res, "sqlite: fail job "+id)
}

const sqliteJobColumns = `id, status, progress, current_step, request, result, error, created_at, updated_at, completed_at`

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanSQLiteJob(s.db.QueryRowContext(ctx, `SELECT `+sqliteJobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + sqliteJobColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	var jobs []model.Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) CreateDraft(ctx context.Context, jobID, productURL string) (*model.Draft, error) {
	d := &model.Draft{
		ID:         uuid.NewString(),
		JobID:      jobID,
		ProductURL: productURL,
		Status:     model.DraftStatusGenerating,
		CreatedAt:  time.Now().UTC(),
	}
	d.UpdatedAt = d.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, job_id, product_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.JobID, d.ProductURL, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert draft for job %s", jobID)
	}
	return d, nil
}

func (s *SQLiteStore) UpdateDraft(ctx context.Context, jobID string, status model.DraftStatus, campaign *model.Campaign) error {
	var campaignJSON sql.NullString
	if campaign != nil {
		b, err := json.Marshal(campaign)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal campaign")
		}
		campaignJSON = sql.NullString{String: string(b), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET status = ?, campaign = COALESCE(?, campaign), updated_at = ? WHERE job_id = ?`,
		string(status), campaignJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update draft for job %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update draft for job %s", jobID)
	}
	return nil
}

func (s *SQLiteStore) GetDraftByJob(ctx context.Context, jobID string) (*model.Draft, error) {
	var d model.Draft
	var status string
	var campaignJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, product_url, status, campaign, created_at, updated_at FROM drafts WHERE job_id = ?`,
		jobID,
	).Scan(&d.ID, &d.JobID, &d.ProductURL, &status, &campaignJSON, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get draft for job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get draft for job %s", jobID)
	}
	d.Status = model.DraftStatus(status)
	if campaignJSON.Valid {
		d.Campaign = &model.Campaign{}
		if err := json.Unmarshal([]byte(campaignJSON.String), d.Campaign); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal campaign")
		}
	}
	return &d, nil
}

func checkTransition(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrap(ErrStale, op)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row scannable) (*model.Job, error) {
	var j model.Job
	var status, reqJSON string
	var resultJSON, errMsg sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(&j.ID, &status, &j.Progress, &j.CurrentStep, &reqJSON, &resultJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	j.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(reqJSON), &j.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	if resultJSON.Valid {
		j.Result = &model.Campaign{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &j, nil
}
