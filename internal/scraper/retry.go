package scraper

import (
	"math"
	"time"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

// ExponentialRetryPolicy implements dealer.RetryPolicy for brand-level
// scrapes: bounded attempts, exponential backoff between a floor and a
// ceiling, transport failures only.
type ExponentialRetryPolicy struct {
	maxAttempts int
	unit        time.Duration
	floor       time.Duration
	ceiling     time.Duration
}

// NewExponentialRetryPolicy builds the default policy: 3 attempts total,
// waits growing exponentially from 4 units to a 10 unit ceiling.
func NewExponentialRetryPolicy(maxAttempts int, unit time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if unit <= 0 {
		unit = time.Second
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		unit:        unit,
		floor:       4 * unit,
		ceiling:     10 * unit,
	}
}

// ShouldRetry decides whether the error warrants another brand attempt.
// Validation and extraction problems never reach here as errors; anything
// that is not a transport failure is final immediately.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return dealer.IsTransport(err)
}

// Backoff returns the wait before the attempt numbered attempt (1-based
// count of attempts already made).
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Duration(float64(p.unit) * math.Pow(2, float64(attempt)))
	if delay < p.floor {
		delay = p.floor
	}
	if delay > p.ceiling {
		delay = p.ceiling
	}
	return delay
}
