package resilience

import (
	"time"

	"github.com/sells-group/campaign-cli/internal/config"
)

// PolicyFromConfig builds a retry policy from the resilience config section.
func PolicyFromConfig(c config.ResilienceConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		p.Attempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		p.Base = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		p.Max = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	return p
}

// BreakerFromConfig builds a named breaker config from the resilience config section.
func BreakerFromConfig(name string, c config.ResilienceConfig) BreakerConfig {
	return BreakerConfig{
		Name:      name,
		Threshold: c.FailureThreshold,
		Cooldown:  time.Duration(c.ResetTimeoutSecs) * time.Second,
	}
}
