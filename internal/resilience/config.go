package resilience

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/practice-metrics/internal/config"
)

// FromConfig converts resilience settings into retry and breaker configs.
// Zero values fall back to the defaults.
func FromConfig(c config.ResilienceConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		retry.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		retry.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		retry.JitterFraction = c.JitterFraction
	}

	breaker := DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		breaker.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		breaker.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	breaker.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("resilience: store circuit changed state",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return retry, breaker
}
