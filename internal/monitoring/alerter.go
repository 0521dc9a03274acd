package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/config"
	"github.com/sells-group/campaign-cli/internal/resilience"
)

// minFinished is the sample size below which the failure rate is not judged.
const minFinished = 5

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertJobFailureRate     AlertType = "job_failure_rate"
	AlertStuckJobs          AlertType = "stuck_jobs"
	AlertGeneratorFallbacks AlertType = "generator_fallbacks"
	AlertCostOverrun        AlertType = "cost_overrun"
)

// Alert is one breached threshold, as posted to the webhook.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule inspects a snapshot and returns an alert when its threshold is breached.
type rule func(cfg config.MonitoringConfig, snap *MetricsSnapshot) *Alert

var rules = []rule{failureRateRule, stuckJobsRule, fallbackRule, costRule}

// Alerter evaluates snapshots against the configured thresholds and posts
// breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryPolicy
}

// AlerterOption configures an Alerter.
type AlerterOption func(*Alerter)

// WithRetryPolicy overrides the webhook retry policy.
func WithRetryPolicy(p resilience.RetryPolicy) AlerterOption {
	return func(a *Alerter) { a.retry = p }
}

// NewAlerter creates an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig, opts ...AlerterOption) *Alerter {
	retry := resilience.DefaultRetryPolicy()
	retry.OnRetry = resilience.LogRetries("monitoring", "webhook")

	a := &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Evaluate returns one alert per breached threshold, in rule order.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	now := time.Now().UTC()
	var alerts []Alert
	for _, r := range rules {
		if alert := r(a.cfg, snap); alert != nil {
			alert.Timestamp = now
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

func failureRateRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) *Alert {
	finished := snap.JobsCompleted + snap.JobsFailed
	if cfg.FailureRateThreshold <= 0 || finished < minFinished || snap.FailRate <= cfg.FailureRateThreshold {
		return nil
	}
	return &Alert{
		Type:     AlertJobFailureRate,
		Severity: "high",
		Message: fmt.Sprintf("Job failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
			snap.FailRate*100, cfg.FailureRateThreshold*100, snap.JobsFailed, finished, snap.LookbackHours),
		Details: map[string]any{
			"failure_rate": snap.FailRate,
			"threshold":    cfg.FailureRateThreshold,
			"failed":       snap.JobsFailed,
			"timed_out":    snap.JobsTimedOut,
			"finished":     finished,
		},
	}
}

func stuckJobsRule(_ config.MonitoringConfig, snap *MetricsSnapshot) *Alert {
	if snap.JobsStuck == 0 {
		return nil
	}
	return &Alert{
		Type:     AlertStuckJobs,
		Severity: "high",
		Message:  fmt.Sprintf("%d job(s) stuck in processing", snap.JobsStuck),
		Details:  map[string]any{"stuck": snap.JobsStuck, "processing": snap.JobsProcessing},
	}
}

func fallbackRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) *Alert {
	if cfg.FallbackRateThreshold <= 0 || snap.Creatives == 0 || snap.FallbackRate <= cfg.FallbackRateThreshold {
		return nil
	}
	return &Alert{
		Type:     AlertGeneratorFallbacks,
		Severity: "medium",
		Message: fmt.Sprintf("%.1f%% of creatives used the template fallback in last %dh (threshold %.1f%%)",
			snap.FallbackRate*100, snap.LookbackHours, cfg.FallbackRateThreshold*100),
		Details: map[string]any{
			"fallback_rate":      snap.FallbackRate,
			"fallback_creatives": snap.FallbackCreatives,
			"creatives":          snap.Creatives,
		},
	}
}

func costRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) *Alert {
	if cfg.CostThresholdUSD <= 0 || snap.GenerationCostUSD <= cfg.CostThresholdUSD {
		return nil
	}
	return &Alert{
		Type:     AlertCostOverrun,
		Severity: "high",
		Message: fmt.Sprintf("Generation cost $%.2f exceeds threshold $%.2f in last %dh",
			snap.GenerationCostUSD, cfg.CostThresholdUSD, snap.LookbackHours),
		Details: map[string]any{
			"cost_usd":      snap.GenerationCostUSD,
			"threshold_usd": cfg.CostThresholdUSD,
			"jobs_total":    snap.JobsTotal,
		},
	}
}

// SendAlerts posts each alert to the webhook and returns how many were
// delivered. Delivery failures are logged, not returned.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		log := zap.L().With(zap.String("type", string(alert.Type)), zap.String("severity", alert.Severity))
		_, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.post(ctx, alert)
		})
		if err != nil {
			log.Error("monitoring: alert delivery failed", zap.Error(err))
			continue
		}
		log.Info("monitoring: alert sent")
		sent++
	}
	return sent
}

// post delivers one alert. 429 and 5xx responses are marked transient.
func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return resilience.Transient(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
