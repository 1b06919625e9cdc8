package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/angeloszaimis/oracle-gateway/internal/metrics"
)

const DefaultTimeout = 30 * time.Second

type BreakerConfig struct {
	Enabled          bool
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client forwards requests to a single upstream REST collection.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	collector  *metrics.Collector
}

type reply struct {
	status int
	body   []byte
}

// New creates a Client for cfg.BaseURL. The collector may be nil.
func New(cfg Config, logger *slog.Logger, collector *metrics.Collector) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("upstream base url %q must be an absolute http(s) URL", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		collector:  collector,
	}

	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, logger)
	}

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL returns the upstream address for path. The path is appended to the base
// URL verbatim: it is neither escaped nor validated.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Forward sends one request to the upstream and translates the outcome.
//
// A 200 response yields the upstream body unchanged, a 201 response yields
// {"success": true, "data": <body>}. Every other outcome is returned as an
// *Error. Forward never retries.
func (c *Client) Forward(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	target := c.URL(path)
	start := time.Now()

	res, err := c.execute(ctx, method, target, body)
	if err != nil {
		upErr := classify(err)
		c.record(method, upErr.Kind.String(), time.Since(start))
		c.logFailure(method, target, upErr)
		return nil, upErr
	}

	c.record(method, strconv.Itoa(res.status), time.Since(start))
	c.logger.Info("Upstream request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", res.status))

	result, upErr := mapResponse(res.status, res.body)
	if upErr != nil {
		if upErr.Kind == KindInternal {
			c.logFailure(method, target, upErr)
		}
		return nil, upErr
	}

	return result, nil
}

func (c *Client) execute(ctx context.Context, method, target string, body []byte) (reply, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.breaker == nil {
		return c.send(req)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(req)
	})
	if err != nil {
		return reply{}, err
	}

	return out.(reply), nil
}

func (c *Client) send(req *http.Request) (reply, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return reply{}, err
	}

	return reply{status: res.StatusCode, body: payload}, nil
}

func (c *Client) record(method, outcome string, duration time.Duration) {
	c.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventUpstreamCompleted,
		Timestamp: time.Now(),
		Method:    method,
		Outcome:   outcome,
		Duration:  duration,
	})
}

func (c *Client) logFailure(method, target string, upErr *Error) {
	attrs := []any{
		slog.String("method", method),
		slog.String("url", target),
		slog.String("kind", upErr.Kind.String()),
		slog.Int("status", upErr.StatusCode),
	}
	if upErr.Cause != nil {
		attrs = append(attrs, slog.String("error", upErr.Cause.Error()))
	}

	if upErr.Kind == KindInternal {
		c.logger.Error("Upstream request error", attrs...)
		return
	}
	c.logger.Warn("Upstream request failed", attrs...)
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle-upstream",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller hanging up is not an upstream fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}
