package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/aws/smithy-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"

	"github.com/prepview/interview-ai-platform/pkg/logging"
)

const (
	retryMaxAttempts   = 3
	defaultCallTimeout = 30 * time.Second
)

// retryDelays are the waits between attempts: 1s after the first failure,
// 2s after the second. The third failure is terminal.
var retryDelays = []time.Duration{time.Second, 2 * time.Second}

// ProviderError is surfaced when a provider call fails after the retry policy
// is exhausted, or immediately for failures that must not be retried.
type ProviderError struct {
	Provider string
	Model    string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("agent: %s call failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RetryClient decorates an LLMClient with the uniform retry policy: up to 3
// attempts, only for transient failures, with a bounded timeout per attempt.
type RetryClient struct {
	inner       LLMClient
	provider    string
	callTimeout time.Duration
	logger      *logging.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryClient.
type RetryOption func(*RetryClient)

// WithCallTimeout overrides the per-attempt provider timeout.
func WithCallTimeout(d time.Duration) RetryOption {
	return func(c *RetryClient) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewRetryClient wraps a provider client with the retry policy.
func NewRetryClient(inner LLMClient, provider string, logger *logging.Logger, opts ...RetryOption) *RetryClient {
	if inner == nil {
		panic("agent: inner client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &RetryClient{
		inner:       inner,
		provider:    provider,
		callTimeout: defaultCallTimeout,
		logger:      logger,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs the request with retries. Transient failures (timeouts, rate
// limits, connection errors) are retried with 1s/2s delays; anything else
// fails immediately. The final failure is wrapped in *ProviderError with the
// last underlying cause attached.
func (c *RetryClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		start := time.Now()
		resp, err := c.completeOnce(ctx, req)
		if err == nil {
			observeCompletion(c.provider, req.Model, "ok", time.Since(start), resp.Usage)
			return resp, nil
		}
		observeCompletion(c.provider, req.Model, "error", time.Since(start), TokenUsage{})
		lastErr = err

		if !IsTransient(err) {
			return LLMResponse{}, &ProviderError{Provider: c.provider, Model: req.Model, Attempts: attempt, Err: err}
		}
		if attempt == retryMaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return LLMResponse{}, &ProviderError{Provider: c.provider, Model: req.Model, Attempts: attempt, Err: ctx.Err()}
		}

		delay := retryDelays[attempt-1]
		c.logger.Warn("transient provider failure, retrying",
			"provider", c.provider,
			"model", req.Model,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return LLMResponse{}, &ProviderError{Provider: c.provider, Model: req.Model, Attempts: attempt, Err: err}
		}
	}

	return LLMResponse{}, &ProviderError{Provider: c.provider, Model: req.Model, Attempts: retryMaxAttempts, Err: lastErr}
}

func (c *RetryClient) completeOnce(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.inner.Complete(callCtx, req)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient classifies a provider failure as retry-eligible. Timeouts,
// rate limits, and connection resets are transient; malformed requests and
// credential failures are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var smithyErr smithy.APIError
	if errors.As(err, &smithyErr) {
		switch smithyErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceUnavailableException",
			"ModelTimeoutException", "InternalServerException", "ModelNotReadyException":
			return true
		}
		return false
	}

	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode == http.StatusTooManyRequests || openaiErr.HTTPStatusCode >= 500
	}

	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code == http.StatusTooManyRequests || googleErr.Code >= 500
	}

	return false
}
