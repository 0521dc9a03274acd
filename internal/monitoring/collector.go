// Package monitoring watches job health and raises alerts when failure,
// fallback or cost thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/jobs"
	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/store"
)

const scanLimit = 10000

// MetricsSnapshot holds a point-in-time view of job health.
type MetricsSnapshot struct {
	// Job metrics (within lookback window).
	JobsTotal      int     `json:"jobs_total"`
	JobsPending    int     `json:"jobs_pending"`
	JobsProcessing int     `json:"jobs_processing"`
	JobsCompleted  int     `json:"jobs_completed"`
	JobsFailed     int     `json:"jobs_failed"`
	JobsTimedOut   int     `json:"jobs_timed_out"`
	JobsStuck      int     `json:"jobs_stuck"`
	FailRate       float64 `json:"fail_rate"`
	AvgDurationSec float64 `json:"avg_duration_secs"`

	// Campaign metrics over completed jobs.
	AdSets            int     `json:"adsets"`
	BlockedAdSets     int     `json:"blocked_adsets"`
	Creatives         int     `json:"creatives"`
	FallbackCreatives int     `json:"fallback_creatives"`
	FallbackRate      float64 `json:"fallback_rate"`
	GenerationCostUSD float64 `json:"generation_cost_usd"`
	NotReady          int     `json:"not_ready_to_submit"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// JobLister is the store surface the collector reads.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// Collector gathers job metrics from the store.
type Collector struct {
	jobs       JobLister
	stuckAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a metrics collector. A processing job whose last
// update is older than stuckAfter counts as stuck; zero disables the check.
func NewCollector(jl JobLister, stuckAfter time.Duration) *Collector {
	return &Collector{jobs: jl, stuckAfter: stuckAfter, now: time.Now}
}

// Collect gathers a snapshot of job metrics over the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	list, err := c.jobs.ListJobs(ctx, store.JobFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	timeoutMsg := jobs.FailureMessage(jobs.ErrTimeout)
	var totalDur time.Duration
	var durCount int

	for _, j := range list {
		if lookbackHours > 0 && j.CreatedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++

		switch j.Status {
		case model.JobStatusPending:
			snap.JobsPending++
		case model.JobStatusProcessing:
			snap.JobsProcessing++
			if c.stuckAfter > 0 && now.Sub(j.UpdatedAt) > c.stuckAfter {
				snap.JobsStuck++
			}
		case model.JobStatusCompleted:
			snap.JobsCompleted++
			if j.CompletedAt != nil {
				totalDur += j.CompletedAt.Sub(j.CreatedAt)
				durCount++
			}
			if j.Result != nil {
				addCampaign(snap, j.Result)
			}
		case model.JobStatusFailed:
			snap.JobsFailed++
			if j.Error == timeoutMsg {
				snap.JobsTimedOut++
			}
		}
	}

	if finished := snap.JobsCompleted + snap.JobsFailed; finished > 0 {
		snap.FailRate = float64(snap.JobsFailed) / float64(finished)
	}
	if durCount > 0 {
		snap.AvgDurationSec = totalDur.Seconds() / float64(durCount)
	}
	if snap.Creatives > 0 {
		snap.FallbackRate = float64(snap.FallbackCreatives) / float64(snap.Creatives)
	}
	return snap, nil
}

func addCampaign(snap *MetricsSnapshot, c *model.Campaign) {
	snap.AdSets += c.Summary.AdSets
	snap.BlockedAdSets += c.Summary.BlockedAdSets
	snap.Creatives += c.Summary.Creatives
	snap.FallbackCreatives += c.Summary.FallbackCreatives
	snap.GenerationCostUSD += c.Summary.GenerationCostUSD
	if !c.ReadyToSubmit {
		snap.NotReady++
	}
}
