package discourse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// responseClass categorizes one attempt's outcome for the retry loop.
type responseClass int

const (
	classOK responseClass = iota
	classTransient
	classTerminal
)

// classify maps a response status to a retry class and, for terminal
// statuses, the error to surface.
func classify(status int) (responseClass, error) {
	switch {
	case status >= 200 && status < 300:
		return classOK, nil
	case status == http.StatusTooManyRequests:
		return classTransient, apperr.ErrRateLimited
	case status >= 500:
		return classTransient, fmt.Errorf("server error %d", status)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return classTerminal, apperr.ErrUnauthorized
	case status == http.StatusNotFound, status == http.StatusGone:
		return classTerminal, apperr.ErrNotFound
	default:
		return classTerminal, fmt.Errorf("unexpected status %d", status)
	}
}

// do issues one API call with authentication and the retry policy: transient
// failures (connection errors, 429, 5xx) are retried with exponential
// backoff up to the client's budget; terminal failures are returned at once.
// On success the response body is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt, lastErr); err != nil {
				return err
			}
			c.logger.Debug("retrying request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt))
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Api-Key", c.apiKey)
		req.Header.Set("Api-Username", c.apiUsername)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Connection-level failure: transient.
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		class, classErr := classify(resp.StatusCode)
		switch class {
		case classOK:
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		case classTransient:
			lastErr = retryAfterError{err: classErr, after: retryAfter(resp)}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		default:
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return classErr
		}
	}
	return fmt.Errorf("retry budget exhausted: %w", errors.Unwrap(asRetryAfter(lastErr)))
}

// retryAfterError carries the server's Retry-After hint through the loop.
type retryAfterError struct {
	err   error
	after time.Duration
}

func (e retryAfterError) Error() string { return e.err.Error() }
func (e retryAfterError) Unwrap() error { return e.err }

// asRetryAfter normalizes lastErr so the final wrap always has an inner error.
func asRetryAfter(err error) retryAfterError {
	var ra retryAfterError
	if errors.As(err, &ra) {
		return ra
	}
	return retryAfterError{err: err}
}

// retryAfter reads the Retry-After header, seconds form only.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// sleep blocks for the backoff delay before the given attempt, honoring a
// Retry-After hint when it exceeds the computed delay, and aborts early on
// context cancellation.
func (c *Client) sleep(ctx context.Context, attempt int, lastErr error) error {
	delay := c.backoffBase << (attempt - 1)
	if hint := asRetryAfter(lastErr).after; hint > delay {
		delay = hint
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
