package transformer

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls HTTP-level retries under the API client. Retries at
// this layer handle transport hiccups; semantic retries stay with the
// pipeline controller.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// retryableStatus reports whether the HTTP status merits another attempt.
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

// retryableNetError classifies transport errors worth retrying.
func retryableNetError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"broken pipe",
		"unexpected eof",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryingRoundTripper wraps a base transport with exponential backoff.
type retryingRoundTripper struct {
	base   http.RoundTripper
	cfg    RetryConfig
	logger *zap.Logger
}

// WrapHTTPClient returns a copy of client whose transport retries
// retryable failures with exponential backoff.
func WrapHTTPClient(client *http.Client, cfg RetryConfig, logger *zap.Logger) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &retryingRoundTripper{base: base, cfg: cfg, logger: logger}
	return &wrapped
}

func (rt *retryingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	delay := rt.cfg.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= rt.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if rt.cfg.Jitter {
				wait += time.Duration(rand.Int63n(int64(delay)/2 + 1))
			}
			rt.logger.Debug("retrying http request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", wait),
				zap.String("url", req.URL.Path))
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(wait):
			}
			delay = time.Duration(float64(delay) * rt.cfg.Multiplier)
			if delay > rt.cfg.MaxDelay {
				delay = rt.cfg.MaxDelay
			}
		}

		// The body must be replayable for retries; GetBody is set for all
		// client requests built from byte buffers.
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			req.Body = body
		}

		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			if retryableNetError(err) && attempt < rt.cfg.MaxRetries {
				lastErr = err
				continue
			}
			return nil, err
		}
		if retryableStatus(resp.StatusCode) && attempt < rt.cfg.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream returned status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", rt.cfg.MaxRetries+1, lastErr)
}
