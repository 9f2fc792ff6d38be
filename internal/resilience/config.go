package resilience

import "time"

// FromAttempts builds a RetryConfig for the given attempt budget. Values
// below two disable retry.
func FromAttempts(maxAttempts int, service, operation string) RetryConfig {
	if maxAttempts <= 1 {
		return NoRetry()
	}
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		OnRetry:        RetryLogger(service, operation),
	}
}
