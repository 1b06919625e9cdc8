package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/oracle-gateway/internal/metrics"
)

// Connection states reported by Check.
const (
	Connected    = "connected"
	Error        = "error"
	Disconnected = "disconnected"
)

const DefaultTimeout = 10 * time.Second

// Prober checks whether the upstream base URL answers.
type Prober struct {
	url       string
	client    *http.Client
	logger    *slog.Logger
	collector *metrics.Collector

	mutex sync.Mutex
	last  string
}

// New creates a Prober for url. The collector may be nil.
func New(url string, timeout time.Duration, logger *slog.Logger, collector *metrics.Collector) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Prober{
		url:       url,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		collector: collector,
	}
}

// Check issues one GET against the upstream. It reports Connected on HTTP 200,
// Error on any other status and Disconnected when the call fails.
func (p *Prober) Check(ctx context.Context) string {
	status := p.probe(ctx)
	p.observe(status)
	return status
}

func (p *Prober) probe(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Disconnected
	}

	res, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Upstream probe failed",
			slog.String("url", p.url),
			slog.String("error", err.Error()))
		return Disconnected
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Error
	}
	return Connected
}

func (p *Prober) observe(status string) {
	p.mutex.Lock()
	changed := p.last != status
	previous := p.last
	p.last = status
	p.mutex.Unlock()

	p.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventConnectionProbed,
		Timestamp:  time.Now(),
		Connection: status,
	})

	if !changed || previous == "" {
		return
	}

	if status == Connected {
		p.logger.Info("Upstream is back up", slog.String("server", p.url))
	} else {
		p.logger.Warn("Upstream is down",
			slog.String("server", p.url),
			slog.String("state", status))
	}
}

// Last returns the result of the most recent check, or "" before the first.
func (p *Prober) Last() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.last
}

// Watch probes the upstream every interval until ctx is cancelled.
func (p *Prober) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Health check stopped", slog.String("server", p.url))
			return

		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
