package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/pipeline"
	"github.com/sells-group/campaign-cli/internal/store"
)

// tracker is the single writer of a job's progress. Stage checkpoints and
// interim ticks are serialized under mu, and only increases are written.
type tracker struct {
	ctx   context.Context
	store store.Store
	jobID string
	log   *zap.Logger

	mu         sync.Mutex
	written    int
	base       int
	ceiling    int
	step       string
	stageStart time.Time
	closed     bool

	stop chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
	tick time.Duration
}

func newTracker(ctx context.Context, st store.Store, jobID string, log *zap.Logger) *tracker {
	return &tracker{
		ctx:   ctx,
		store: st,
		jobID: jobID,
		log:   log,
		stop:  make(chan struct{}),
		now:   time.Now,
	}
}

// checkpoint records the start of a pipeline stage.
func (t *tracker) checkpoint(ev pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.base = ev.Progress
	t.ceiling = max(ev.Ceiling, ev.Progress)
	t.step = ev.Step
	t.stageStart = t.now()
	t.log.Info("jobs: stage", zap.String("stage", string(ev.Stage)), zap.Int("progress", ev.Progress))
	t.write(ev.Progress)
}

// interim advances progress by one point per elapsed tick within the
// current stage, never reaching the next checkpoint.
func (t *tracker) interim() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.stageStart.IsZero() || t.tick <= 0 {
		return
	}
	steps := int(t.now().Sub(t.stageStart) / t.tick)
	t.write(min(t.base+steps, t.ceiling))
}

// write must be called with mu held.
func (t *tracker) write(progress int) {
	if progress <= t.written {
		return
	}
	if err := t.store.UpdateJobProgress(t.ctx, t.jobID, progress, t.step); err != nil {
		t.log.Warn("jobs: progress update", zap.Int("progress", progress), zap.Error(err))
		return
	}
	t.written = progress
}

func (t *tracker) startTicker(every time.Duration) {
	t.tick = every
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-t.ctx.Done():
				return
			case <-ticker.C:
				t.interim()
			}
		}
	}()
}

// close stops the ticker and blocks further writes. After close returns no
// progress update for this job is in flight.
func (t *tracker) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.stop)
	t.wg.Wait()
}
