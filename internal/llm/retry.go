// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/avast/retry-go/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/Stellven/KBSkills/internal/logger"
)

// retryingGenerator retries transient transport failures of next.
type retryingGenerator struct {
	next     Generator
	attempts uint
	delay    time.Duration
}

// WithRetry wraps g so that transient failures are retried up to
// maxRetries extra times with a fixed delay. maxRetries <= 0 returns g.
func WithRetry(g Generator, maxRetries int, delay time.Duration) Generator {
	if maxRetries <= 0 {
		return g
	}
	return &retryingGenerator{next: g, attempts: uint(maxRetries) + 1, delay: delay}
}

func (r *retryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return r.next.Generate(ctx, prompt)
		},
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", r.attempts).
				Warn("retrying generation call")
		}),
	)
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"internal error",
	"quota exceeded",
	"resource exhausted",
	"rate limit",
	"too many requests",
}

// IsRetryable reports whether err is a transient transport failure:
// rate limiting, a 5xx status, a network error, or an empty response.
// Cancellation and other client errors are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}

	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return retryableStatus(oaErr.HTTPStatusCode)
	}
	var oaReqErr *openai.RequestError
	if errors.As(err, &oaReqErr) {
		return retryableStatus(oaReqErr.HTTPStatusCode)
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return retryableStatus(anErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
