// Loadtest drives concurrent requests through the gateway and reports
// throughput, latency percentiles and the status code distribution.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:3000/oracle/table1_11/ -concurrency 10 -requests 1000
//	go run ./scripts/loadtest -url http://localhost:3000/oracle/table1_11/stats/summary -requests 500 -csv results.csv -out summary.json
//
// Summary responses are always 200, so a body carrying an "error" field is
// counted as degraded rather than successful.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type statusStats struct {
	Count     int32
	Latencies []time.Duration
}

type percentiles struct {
	Min time.Duration
	Avg time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

func summarize(latencies []time.Duration) percentiles {
	if len(latencies) == 0 {
		return percentiles{}
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	pick := func(p float64) time.Duration {
		return sorted[int(float64(len(sorted)-1)*p)]
	}

	return percentiles{
		Min: sorted[0],
		Avg: sum / time.Duration(len(sorted)),
		Max: sorted[len(sorted)-1],
		P50: pick(0.50),
		P90: pick(0.90),
		P95: pick(0.95),
		P99: pick(0.99),
	}
}

func isDegraded(body []byte) bool {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	_, ok := payload["error"]
	return ok
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:3000/oracle/table1_11/", "Target URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		method      = flag.String("method", "GET", "HTTP method")
		body        = flag.String("body", "", `Request body, e.g. {"customer_name":"Load","total_amount":1}`)
		timeout     = flag.Duration("timeout", 35*time.Second, "Per-request timeout")
	)

	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	outCSV := flag.String("csv", "", "Write per-request CSV to this file (optional)")
	verbose := flag.Bool("v", false, "Verbose per-request logging to stdout")
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var total, success, degraded, failure int32

	byStatus := make(map[int]*statusStats)
	var statusMu sync.Mutex

	var allLatencies []time.Duration
	var latMu sync.Mutex

	var csvFile *os.File
	var csvWriter *csv.Writer
	var csvMu sync.Mutex
	if *outCSV != "" {
		f, err := os.Create(*outCSV)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create csv file: %v\n", err)
			os.Exit(1)
		}
		csvFile = f
		csvWriter = csv.NewWriter(f)
		csvWriter.Write([]string{"idx", "timestamp", "request_id", "status", "duration_ms"})
	}

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)

				var reader io.Reader
				if *body != "" {
					reader = bytes.NewBufferString(*body)
				}
				req, err := http.NewRequest(*method, *url, reader)
				if err != nil {
					atomic.AddInt32(&failure, 1)
					continue
				}
				req.Header.Set("Content-Type", "application/json")

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt32(&failure, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}
				payload, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				dur := time.Since(start)

				latMu.Lock()
				allLatencies = append(allLatencies, dur)
				latMu.Unlock()

				switch {
				case resp.StatusCode < 200 || resp.StatusCode > 299:
					atomic.AddInt32(&failure, 1)
				case isDegraded(payload):
					atomic.AddInt32(&degraded, 1)
				default:
					atomic.AddInt32(&success, 1)
				}

				statusMu.Lock()
				st, ok := byStatus[resp.StatusCode]
				if !ok {
					st = &statusStats{}
					byStatus[resp.StatusCode] = st
				}
				st.Count++
				st.Latencies = append(st.Latencies, dur)
				statusMu.Unlock()

				requestID := resp.Header.Get("X-Request-ID")

				if csvWriter != nil {
					csvMu.Lock()
					csvWriter.Write([]string{
						strconv.Itoa(idx),
						time.Now().Format(time.RFC3339Nano),
						requestID,
						strconv.Itoa(resp.StatusCode),
						fmt.Sprintf("%.3f", float64(dur.Microseconds())/1000.0),
					})
					csvMu.Unlock()
				}

				if *verbose {
					fmt.Printf("[%d] idx=%d request_id=%s status=%d dur=%v\n", workerID, idx, requestID, resp.StatusCode, dur)
				}
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	totalDuration := time.Since(testStart)

	if csvWriter != nil {
		csvWriter.Flush()
		csvFile.Close()
	}

	throughput := float64(total) / totalDuration.Seconds()

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s %s\n", *method, *url)
	fmt.Printf("Requests: %d  Concurrency: %d\n", *requests, *concurrency)
	fmt.Printf("Total sent: %d  Success: %d  Degraded: %d  Failure: %d\n", total, success, degraded, failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, throughput)

	fmt.Println("\nStatus codes:")
	var codes []int
	for code := range byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		st := byStatus[code]
		p := summarize(st.Latencies)
		fmt.Printf("  %d -> %d  p50=%v p95=%v p99=%v\n", code, st.Count, p.P50, p.P95, p.P99)
	}

	overall := summarize(allLatencies)
	if len(allLatencies) > 0 {
		fmt.Println("\nOverall latencies:")
		fmt.Printf("  samples=%d min=%v avg=%v max=%v p50=%v p90=%v p95=%v p99=%v\n",
			len(allLatencies), overall.Min, overall.Avg, overall.Max, overall.P50, overall.P90, overall.P95, overall.P99)
	}

	fmt.Printf("\nGOMAXPROCS=%d  NumGoroutine=%d\n", runtime.GOMAXPROCS(0), runtime.NumGoroutine())

	if *outJSON != "" {
		statusCounts := make(map[string]int32, len(byStatus))
		for code, st := range byStatus {
			statusCounts[strconv.Itoa(code)] = st.Count
		}

		report := map[string]any{
			"target":         *url,
			"method":         *method,
			"requests":       *requests,
			"concurrency":    *concurrency,
			"total_sent":     total,
			"success":        success,
			"degraded":       degraded,
			"failure":        failure,
			"duration_ms":    totalDuration.Milliseconds(),
			"throughput_rps": throughput,
			"status_codes":   statusCounts,
			"p50_ms":         overall.P50.Milliseconds(),
			"p95_ms":         overall.P95.Milliseconds(),
			"p99_ms":         overall.P99.Milliseconds(),
		}

		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if failure > 0 || degraded > 0 {
		os.Exit(2)
	}
}
