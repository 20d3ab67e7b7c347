package client

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy controls how GET requests are retried after a transport error or
// a retryable status. Writes to the inbox are never retried.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
	Jitter     float64 // randomization factor, 0.0 to 1.0
}

// NoRetry sends every request exactly once.
var NoRetry = RetryPolicy{}

// DefaultRetryPolicy is used by NewClient: three retries, 100ms doubling to 2s
// with 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Initial:    100 * time.Millisecond,
		Max:        2 * time.Second,
		Jitter:     0.2,
	}
}

func (p RetryPolicy) tries() uint {
	if p.MaxRetries < 0 {
		return 1
	}
	return uint(p.MaxRetries) + 1
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

// hintedBackOff returns a delay announced by the server once, then falls back
// to the wrapped schedule.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	if d := h.hint; d > 0 {
		h.hint = 0
		return d
	}
	return h.BackOff.NextBackOff()
}

// retryableStatus reports whether a GET that failed with code may succeed
// when sent again.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
