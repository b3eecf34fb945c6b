package session

import "time"

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
)

// Backoff returns the wait before the nth reconnect attempt (1-indexed):
// 1s, 2s, 4s, 8s, 16s, then 30s for every attempt after that.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseRetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}
