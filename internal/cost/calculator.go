// Package cost prices content-generator usage and totals it per campaign.
package cost

import (
	"sync"

	"github.com/sells-group/campaign-cli/internal/config"
)

// TokenCounts is the usage reported for one generator call.
type TokenCounts struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Calculator prices token usage per model (USD per million tokens).
type Calculator struct {
	rates map[string]config.ModelPricing
}

// NewCalculator merges overrides on top of DefaultPricing.
func NewCalculator(overrides map[string]config.ModelPricing) *Calculator {
	rates := DefaultPricing()
	for model, r := range overrides {
		rates[model] = r
	}
	return &Calculator{rates: rates}
}

// Price returns the cost of one call, or zero for an unknown model.
func (c *Calculator) Price(model string, t TokenCounts) float64 {
	r, ok := c.rates[model]
	if !ok {
		return 0
	}
	perTok := func(n int64, rate float64) float64 { return float64(n) / 1e6 * rate }
	return perTok(t.Input, r.Input) +
		perTok(t.Output, r.Output) +
		perTok(t.CacheWrite, r.Input*r.CacheWriteMul) +
		perTok(t.CacheRead, r.Input*r.CacheReadMul)
}

// Known reports whether the model has pricing.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates[model]
	return ok
}

// DefaultPricing returns list prices for the generator models in use.
func DefaultPricing() map[string]config.ModelPricing {
	return map[string]config.ModelPricing{
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	}
}

// Ledger accumulates generation spend across concurrent callers.
type Ledger struct {
	mu    sync.Mutex
	total float64
	calls int
}

// Add records one priced call.
func (l *Ledger) Add(usd float64) {
	l.mu.Lock()
	l.total += usd
	l.calls++
	l.mu.Unlock()
}

// Total returns the accumulated spend and call count.
func (l *Ledger) Total() (usd float64, calls int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total, l.calls
}
