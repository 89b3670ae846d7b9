package interpreter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
)

// Prompt is a single JSON-mode completion request.
type Prompt struct {
	System string
	User   string
	Image  *Image
}

// Completer sends a prompt to a model and returns its raw text output, which
// is expected to be a JSON document.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// Retrying retries a Completer on rate limits and transient network errors
// with exponential backoff. Any other error is returned at once.
type Retrying struct {
	next       Completer
	maxRetries int
	base       time.Duration
	max        time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next. A non-positive base uses the default backoff.
func NewRetrying(next Completer, maxRetries int, base time.Duration) *Retrying {
	if base <= 0 {
		base = constants.DefaultRetryBackoff
	}
	return &Retrying{
		next:       next,
		maxRetries: maxRetries,
		base:       base,
		max:        constants.MaxRetryBackoff,
		sleep:      sleepContext,
	}
}

func (r *Retrying) Name() string {
	return r.next.Name()
}

func (r *Retrying) Complete(ctx context.Context, p Prompt) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff(attempt)
			logger.Debug("Retrying completion", "provider", r.next.Name(), "attempt", attempt, "wait", wait, "error", lastErr)
			if err := r.sleep(ctx, wait); err != nil {
				return "", apperrors.Upstream(r.next.Name(), "complete", fmt.Errorf("%w (last error: %v)", err, lastErr))
			}
		}

		out, err := r.next.Complete(ctx, p)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return "", apperrors.Upstream(r.next.Name(), "complete", err)
		}
	}
	return "", apperrors.Upstream(r.next.Name(), "complete", fmt.Errorf("max retries exceeded: %w", lastErr))
}

// backoff doubles from base for every attempt and is capped at max.
func (r *Retrying) backoff(attempt int) time.Duration {
	d := r.base << uint(attempt-1)
	if d <= 0 || d > r.max {
		return r.max
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// statusError carries an HTTP status from a provider so retry decisions do
// not depend on message text.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status == 502 || se.Status == 503 || se.Status == 504
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "resource_exhausted", "rate limit", "503", "unavailable", "connection reset", "timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
