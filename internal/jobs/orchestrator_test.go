package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/pipeline"
	"github.com/sells-group/campaign-cli/internal/store"
)

type builderFunc func(ctx context.Context, req model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error)

func (f builderFunc) Build(ctx context.Context, req model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
	return f(ctx, req, progress)
}

var stages = []pipeline.Event{
	{Stage: pipeline.StageStrategies, Progress: 10, Ceiling: 19, Step: "Preparing"},
	{Stage: pipeline.StageAudiences, Progress: 20, Ceiling: 29, Step: "Audiences"},
	{Stage: pipeline.StageCreatives, Progress: 30, Ceiling: 79, Step: "Creatives"},
	{Stage: pipeline.StageBudgets, Progress: 80, Ceiling: 89, Step: "Budgets"},
	{Stage: pipeline.StageAssemble, Progress: 90, Ceiling: 99, Step: "Assembling"},
}

func okBuilder() builderFunc {
	return func(_ context.Context, req model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
		for _, ev := range stages {
			progress(ev)
		}
		return &model.Campaign{Name: "built", ProductURL: req.ProductURL}, nil
	}
}

func request() model.GenerationRequest {
	return model.GenerationRequest{ProductURL: "https://example.com", Objective: "TRAFFIC", Budget: 100}
}

func assertNonDecreasing(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress went backwards: %v", values)
	}
}

func TestSubmit_Completes(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, okBuilder(), Options{Timeout: time.Second, TickInterval: time.Hour})

	job, err := o.Submit(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)

	o.Wait()

	view, err := o.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	require.NotNil(t, view.Result)
	assert.Equal(t, "built", view.Result.Name)
	assert.Empty(t, view.Error)

	assert.Equal(t, []int{10, 20, 30, 80, 90, 100}, st.progressHistory(job.ID))

	draft, err := st.GetDraftByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusReady, draft.Status)
	assert.NotNil(t, draft.Campaign)
}

func TestSubmit_PipelineError(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, builderFunc(func(_ context.Context, _ model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
		progress(stages[0])
		return nil, errors.New("malformed strategy")
	}), Options{Timeout: time.Second})

	job, err := o.Submit(context.Background(), request())
	require.NoError(t, err)
	o.Wait()

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "malformed strategy", got.Error)
	assert.Equal(t, 10, got.Progress)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.Result)

	draft, err := st.GetDraftByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusFailed, draft.Status)
}

func TestSubmit_PanicBecomesFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, builderFunc(func(context.Context, model.GenerationRequest, pipeline.ProgressFunc) (*model.Campaign, error) {
		panic("nil map")
	}), Options{Timeout: time.Second})

	job, err := o.Submit(context.Background(), request())
	require.NoError(t, err)
	o.Wait()

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "panic")
}

func TestSubmit_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, builderFunc(func(ctx context.Context, _ model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
		progress(stages[2])
		<-ctx.Done()
		return nil, ctx.Err()
	}), Options{Timeout: 30 * time.Millisecond, TickInterval: time.Hour})

	job, err := o.Submit(context.Background(), request())
	require.NoError(t, err)
	o.Wait()

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, ErrTimeout.Error(), got.Error)
}

func TestSubmit_TimeoutWhenBuilderIgnoresContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	returned := make(chan struct{})
	st := newMemStore()
	o := New(st, builderFunc(func(_ context.Context, _ model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
		defer close(returned)
		<-release
		// Late checkpoints after the deadline must not touch the job.
		progress(stages[4])
		return &model.Campaign{}, nil
	}), Options{Timeout: 30 * time.Millisecond})

	job, err := o.Submit(context.Background(), request())
	require.NoError(t, err)
	o.Wait()

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, ErrTimeout.Error(), got.Error)

	close(release)
	<-returned

	got, err = st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, 0, got.Progress)
}

func TestSubmit_InterimTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, builderFunc(func(_ context.Context, _ model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
		progress(stages[2])
		time.Sleep(80 * time.Millisecond)
		progress(stages[3])
		return &model.Campaign{}, nil
	}), Options{Timeout: time.Second, TickInterval: 5 * time.Millisecond})

	job, err := o.Submit(context.Background(), request())
	require.NoError(t, err)
	o.Wait()

	history := st.progressHistory(job.ID)
	assertNonDecreasing(t, history)

	var interim bool
	for _, p := range history {
		assert.LessOrEqual(t, p, 100)
		if p > 30 && p < 80 {
			interim = true
		}
	}
	assert.True(t, interim, "expected an interim tick between checkpoints, got %v", history)
	assert.Equal(t, 100, history[len(history)-1])
}

func TestSubmit_DraftFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	st.draftErr = errors.New("draft table missing")
	var calls atomic.Int32
	o := New(st, builderFunc(func(context.Context, model.GenerationRequest, pipeline.ProgressFunc) (*model.Campaign, error) {
		calls.Add(1)
		return nil, nil
	}), Options{})

	_, err := o.Submit(context.Background(), request())
	require.Error(t, err)
	o.Wait()

	assert.Equal(t, int32(0), calls.Load())
	jobs, err := o.List(context.Background(), store.JobFilter{Status: model.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestExecute_Synchronous(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, okBuilder(), Options{Timeout: time.Second})

	job, err := o.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestStatus_NotFound(t *testing.T) {
	o := New(newMemStore(), okBuilder(), Options{})

	_, err := o.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_ConcurrentJobsAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newMemStore()
	o := New(st, builderFunc(func(_ context.Context, req model.GenerationRequest, progress pipeline.ProgressFunc) (*model.Campaign, error) {
		for _, ev := range stages {
			progress(ev)
		}
		if req.Budget < 0 {
			return nil, errors.New("negative")
		}
		return &model.Campaign{Name: req.ProductURL}, nil
	}), Options{Timeout: time.Second})

	var ids []string
	for i := range 8 {
		req := request()
		if i%2 == 1 {
			req.Budget = -1
		}
		job, err := o.Submit(context.Background(), req)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	o.Wait()

	for i, id := range ids {
		got, err := st.GetJob(context.Background(), id)
		require.NoError(t, err)
		if i%2 == 1 {
			assert.Equal(t, model.JobStatusFailed, got.Status)
		} else {
			assert.Equal(t, model.JobStatusCompleted, got.Status)
		}
		assertNonDecreasing(t, st.progressHistory(id))
	}
}

func TestFailureMessage(t *testing.T) {
	assert.Empty(t, FailureMessage(nil))
	assert.Equal(t, "root", FailureMessage(errors.New("root")))
}
