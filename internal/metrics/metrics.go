package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metrics holds aggregated upstream call statistics keyed by HTTP method.
type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	responseTimes map[string][]time.Duration
	outcomes      map[string]map[string]int64
	connection    string
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                    `json:"total_requests"`
	Uptime        time.Duration            `json:"uptime"`
	Upstream      string                   `json:"upstream"`
	Connection    string                   `json:"oracle_connection,omitempty"`
	Methods       map[string]MethodMetrics `json:"methods"`
}

type MethodMetrics struct {
	Requests    int64            `json:"requests"`
	AvgResponse time.Duration    `json:"avg_response"`
	P50Response time.Duration    `json:"p50_response"`
	P95Response time.Duration    `json:"p95_response"`
	P99Response time.Duration    `json:"p99_response"`
	Outcomes    map[string]int64 `json:"outcomes"`
}

const maxSamples = 1000

func (m *Metrics) RecordCall(method string, duration time.Duration, outcome string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[method]++

	m.responseTimes[method] = append(m.responseTimes[method], duration)
	if len(m.responseTimes[method]) > maxSamples {
		m.responseTimes[method] = m.responseTimes[method][1:]
	}

	if m.outcomes[method] == nil {
		m.outcomes[method] = make(map[string]int64)
	}
	m.outcomes[method][outcome]++
}

func (m *Metrics) UpdateConnection(status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.connection = status
}

func (m *Metrics) Snapshot(upstream string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(m.startTime),
		Upstream:   upstream,
		Connection: m.connection,
		Methods:    make(map[string]MethodMetrics, len(m.requests)),
	}

	for method, count := range m.requests {
		snap.TotalRequests += count

		outcomes := make(map[string]int64, len(m.outcomes[method]))
		for outcome, n := range m.outcomes[method] {
			outcomes[outcome] = n
		}

		mm := MethodMetrics{
			Requests: count,
			Outcomes: outcomes,
		}

		durations := m.responseTimes[method]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			mm.AvgResponse = average(sorted)
			mm.P50Response = percentile(sorted, 0.50)
			mm.P95Response = percentile(sorted, 0.95)
			mm.P99Response = percentile(sorted, 0.99)
		}

		snap.Methods[method] = mm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		outcomes:      make(map[string]map[string]int64),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
