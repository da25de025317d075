// Package retry wraps fallible remote calls with capped exponential
// backoff. Every remote call in query understanding and embedding
// acquisition goes through Do.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Classification decides whether a failed attempt is worth repeating.
type Classification int

const (
	// Fatal failures propagate to the caller immediately.
	Fatal Classification = iota
	// Retryable failures are re-attempted until the policy is exhausted.
	Retryable
)

// Classifier maps a failure to its classification.
type Classifier func(err error) Classification

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// DefaultPolicy returns the policy used for all remote AI calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 6,
		BaseDelay:   800 * time.Millisecond,
		MaxDelay:    12 * time.Second,
		Jitter:      250 * time.Millisecond,
	}
}

// Do runs op up to p.MaxAttempts times. Between attempts it sleeps
// min(MaxDelay, BaseDelay*2^n) plus random jitter. A Fatal classification
// or context cancellation stops the loop; the last failure is returned
// either way.
func (p Policy) Do(ctx context.Context, op func() error, classify Classifier) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy().BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy().MaxDelay
	}
	if classify == nil {
		classify = Transient
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
			if classify(err) != Retryable || attempt == p.MaxAttempts-1 {
				return lastErr
			}
		}

		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// Do runs op under the default policy.
func Do(ctx context.Context, op func() error, classify Classifier) error {
	return DefaultPolicy().Do(ctx, op, classify)
}

// backoff returns the delay before attempt n+1.
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return delay
}

// Transient classifies the usual remote failure modes: HTTP 429 and any
// 5xx are retryable, as are connection resets/aborts, timeouts, and DNS
// failures. Everything else, malformed response bodies included, is fatal
// for the call.
func Transient(err error) Classification {
	if err == nil {
		return Fatal
	}

	if status, ok := StatusOf(err); ok {
		if status == 429 || (status >= 500 && status <= 599) {
			return Retryable
		}
		return Fatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Retryable
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.ECONNREFUSED) {
		return Retryable
	}

	return Fatal
}

// StatusOf extracts an HTTP-like status code from an error when the
// upstream client carried one.
func StatusOf(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}

// StatusError carries an HTTP status from services that are not behind the
// OpenAI client, such as the vector search sidecar.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}
