// Package jobs runs campaign generation as background jobs and tracks
// their progress in the store.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/pipeline"
	"github.com/sells-group/campaign-cli/internal/store"
)

// ErrTimeout is the failure recorded when a job exceeds its wall-clock budget.
var ErrTimeout = eris.New("jobs: generation timed out")

const (
	stepStarting     = "Starting"
	finalizeTimeout  = 10 * time.Second
	defaultJobBudget = 5 * time.Minute
	defaultTick      = 3 * time.Second
)

// Builder runs the campaign pipeline for one request.
type Builder interface {
	Build(ctx context.Context, req model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error)
}

// Options tunes the orchestrator.
type Options struct {
	Timeout      time.Duration
	TickInterval time.Duration
}

// Orchestrator accepts generation requests and runs each one as a single
// sequential unit of work in its own goroutine.
type Orchestrator struct {
	store   store.Store
	builder Builder
	timeout time.Duration
	tick    time.Duration
	wg      sync.WaitGroup
}

// New creates an Orchestrator.
func New(st store.Store, b Builder, opts Options) *Orchestrator {
	o := &Orchestrator{store: st, builder: b, timeout: opts.Timeout, tick: opts.TickInterval}
	if o.timeout <= 0 {
		o.timeout = defaultJobBudget
	}
	if o.tick <= 0 {
		o.tick = defaultTick
	}
	return o
}

// Submit records a pending job with its draft and starts it in the
// background. The returned job is the pending snapshot.
func (o *Orchestrator) Submit(ctx context.Context, req model.GenerationRequest) (*model.Job, error) {
	job, err := o.accept(ctx, req)
	if err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(job.ID, req)
	}()
	return job, nil
}

// Execute runs a job in the calling goroutine and returns its final state.
func (o *Orchestrator) Execute(ctx context.Context, req model.GenerationRequest) (*model.Job, error) {
	job, err := o.accept(ctx, req)
	if err != nil {
		return nil, err
	}
	o.run(job.ID, req)
	return o.store.GetJob(ctx, job.ID)
}

// Status returns the polling view of a job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*model.JobView, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	v := job.View()
	return &v, nil
}

// List returns jobs matching filter, newest first.
func (o *Orchestrator) List(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	return o.store.ListJobs(ctx, filter)
}

// Wait blocks until every submitted job has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) accept(ctx context.Context, req model.GenerationRequest) (*model.Job, error) {
	job, err := o.store.CreateJob(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: create job")
	}
	if _, err := o.store.CreateDraft(ctx, job.ID, req.ProductURL); err != nil {
		if failErr := o.store.FailJob(ctx, job.ID, "could not create draft"); failErr != nil {
			zap.L().Warn("jobs: fail job after draft error", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return nil, eris.Wrap(err, "jobs: create draft")
	}
	zap.L().Info("jobs: accepted",
		zap.String("job_id", job.ID),
		zap.String("product_url", req.ProductURL),
		zap.Float64("budget", req.Budget),
	)
	return job, nil
}

// run owns every write to the job record from processing to terminal state.
func (o *Orchestrator) run(jobID string, req model.GenerationRequest) {
	log := zap.L().With(zap.String("job_id", jobID))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if err := o.store.MarkJobProcessing(ctx, jobID, stepStarting); err != nil {
		log.Error("jobs: mark processing", zap.Error(err))
		o.finish(ctx, log, jobID, nil, err)
		return
	}

	tr := newTracker(ctx, o.store, jobID, log)
	tr.startTicker(o.tick)

	campaign, err := o.execute(ctx, req, tr.checkpoint)
	tr.close()

	o.finish(ctx, log, jobID, campaign, err)
	log.Info("jobs: finished",
		zap.Bool("ok", err == nil),
		zap.Duration("elapsed", time.Since(start)),
	)
}

type buildResult struct {
	campaign *model.Campaign
	err      error
}

// execute enforces the wall-clock budget even if the builder ignores ctx.
func (o *Orchestrator) execute(ctx context.Context, req model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
	done := make(chan buildResult, 1)
	go func() {
		var res buildResult
		defer func() {
			if r := recover(); r != nil {
				res = buildResult{err: eris.Errorf("jobs: pipeline panic: %v", r)}
			}
			done <- res
		}()
		res.campaign, res.err = o.builder.Build(ctx, req, progress)
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, eris.Wrapf(ErrTimeout, "after %s", o.timeout)
		}
		return res.campaign, res.err
	case <-ctx.Done():
		return nil, eris.Wrapf(ErrTimeout, "after %s", o.timeout)
	}
}

// finish writes the terminal state and keeps the draft consistent with it.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, jobID string, campaign *model.Campaign, runErr error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if runErr == nil {
		if err := o.store.CompleteJob(wctx, jobID, campaign); err != nil {
			log.Error("jobs: complete job", zap.Error(err))
			return
		}
		if err := o.store.UpdateDraft(wctx, jobID, model.DraftStatusReady, campaign); err != nil {
			log.Error("jobs: mark draft ready", zap.Error(err))
		}
		return
	}

	msg := FailureMessage(runErr)
	log.Error("jobs: failed", zap.String("error", msg), zap.Error(runErr))
	if err := o.store.FailJob(wctx, jobID, msg); err != nil {
		log.Error("jobs: fail job", zap.Error(err))
	}
	if err := o.store.UpdateDraft(wctx, jobID, model.DraftStatusFailed, nil); err != nil {
		log.Error("jobs: mark draft failed", zap.Error(err))
	}
}

// FailureMessage is the root-cause message of err.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTimeout) {
		return ErrTimeout.Error()
	}
	if cause := eris.Cause(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}
