package jobs

import (
	"math"
	"time"
)

// Backoff computes retry delays: Initial * 2^(attempt-1), capped at Max.
// Attempt 1 is the first retry after the initial failure. With the default
// config (30s initial, 1h cap, 8 attempts) a job retries at 30s, 1m, 2m, 4m,
// 8m, 16m, 32m before being given up.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before retry attempt n (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.Initial) * math.Pow(2, float64(attempt-1)))
	if d < 0 || (b.Max > 0 && d > b.Max) {
		return b.Max
	}
	return d
}
