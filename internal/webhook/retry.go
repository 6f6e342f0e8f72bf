package webhook

import (
	"math/rand/v2"
	"time"
)

// DefaultRetryDelays back off between delivery attempts. Deliveries are
// in-process, so the schedule stays within a few minutes.
var DefaultRetryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
}

const (
	// DefaultMaxAttempts is the first try plus one retry per default delay.
	DefaultMaxAttempts = 5

	// JitterFactor is the ±fraction of jitter applied to delays.
	JitterFactor = 0.2
)

// NextRetryDelay returns the delay before retry number attempt (0-indexed)
// with ±20% jitter. Attempts past the end of delays reuse the last entry.
func NextRetryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}

	base := delays[attempt]
	jitter := (rand.Float64()*2 - 1) * float64(base) * JitterFactor
	return time.Duration(float64(base) + jitter)
}

// retryable reports whether an HTTP status is worth another attempt.
// Client errors other than timeouts and throttling are permanent.
func retryable(status int) bool {
	if status == 408 || status == 429 {
		return true
	}
	return status < 400 || status >= 500
}
