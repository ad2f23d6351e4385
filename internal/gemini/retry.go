package gemini

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	maxRetryAfter = 60 * time.Second
	maxBackoff    = 30 * time.Second
)

// retryGet issues an idempotent request up to MaxRetries+1 times. Transient
// network errors, 408, 429 and 5xx are retried; any other response goes back
// to the caller. Upload and generate never come through here.
func (c *Client) retryGet(ctx context.Context, op string, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	attempts := c.cfg.MaxRetries + 1

	var lastErr error
	for attempt := range attempts {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)

		wait, retry := c.retryDelay(resp, err, attempt)
		if !retry {
			return resp, err
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%s returned %s", op, resp.Status)
			_ = resp.Body.Close()
		}

		c.logger.Debug("retrying gemini request",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		if attempt == attempts-1 {
			break
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	c.logger.Warn("gemini request gave up",
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%s: %d attempts failed: %w", op, attempts, lastErr)
}

// retryDelay decides whether an outcome is worth another attempt and how
// long to wait first. A server-sent Retry-After wins over backoff.
func (c *Client) retryDelay(resp *http.Response, err error, attempt int) (time.Duration, bool) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, false
		}
		return jitter(c.cfg.BaseBackoff, attempt), transient(err)
	}
	if !shouldRetryStatus(resp.StatusCode) {
		return 0, false
	}
	if d := retryAfter(resp.Header.Get("Retry-After")); d > 0 {
		return d, true
	}
	return jitter(c.cfg.BaseBackoff, attempt), true
}

func shouldRetryStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500 && status <= 599
}

// transient reports network failures that a fresh connection may not hit.
func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		strings.Contains(err.Error(), "connection reset")
}

// retryAfter parses delta-seconds or an HTTP date, capped at maxRetryAfter.
func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
	}
	return max(0, min(d, maxRetryAfter))
}

// jitter is full-jitter exponential backoff in [0, base<<attempt).
func jitter(base time.Duration, attempt int) time.Duration {
	ceiling := base << min(attempt, 10)
	if ceiling <= 0 || ceiling > maxBackoff {
		ceiling = maxBackoff
	}
	return rand.N(ceiling)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
