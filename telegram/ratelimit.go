package telegram

import (
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimitedTransport wraps a RoundTripper so that requests through
// it respect a requests-per-second budget. Telegram applies limits per
// session, so each account's client gets its own limiter.
func RateLimitedTransport(rt http.RoundTripper, rps, burst int) http.RoundTripper {
	if burst < 1 {
		burst = 1
	}
	return &roundTripRateLimiter{
		rl: rate.NewLimiter(rate.Limit(rps), burst),
		tx: rt,
	}
}

type roundTripRateLimiter struct {
	rl *rate.Limiter
	tx http.RoundTripper
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait errors out if the request cannot be processed within the
	// deadline. This is preemptive, instead of waiting the entire
	// duration.
	if err := t.rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	return t.tx.RoundTrip(r)
}
