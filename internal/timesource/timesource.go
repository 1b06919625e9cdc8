package timesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultURL     = "http://worldtimeapi.org/api/timezone/Asia/Riyadh"
	DefaultTimeout = 10 * time.Second
)

var ErrNoDatetime = errors.New("time service response has no datetime")

// Clock reports the current time as a formatted string.
type Clock interface {
	Now(ctx context.Context) (string, error)
}

// Client reads the current time from a worldtimeapi-compatible service.
type Client struct {
	url        string
	httpClient *http.Client
}

func New(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Now returns the "datetime" field of the service response unchanged.
func (c *Client) Now(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build time request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query time service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("time service returned status %d", res.StatusCode)
	}

	var payload struct {
		Datetime string `json:"datetime"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode time service response: %w", err)
	}
	if payload.Datetime == "" {
		return "", ErrNoDatetime
	}

	return payload.Datetime, nil
}
