package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/oracle-gateway/config"
)

type upstreamCall struct {
	method   string
	path     string
	rawQuery string
	body     string
}

var _ = Describe("gateway", func() {
	var (
		oracle   *httptest.Server
		clock    *httptest.Server
		cfg      *config.Config
		gw       *gateway
		cancel   context.CancelFunc
		mutex    sync.Mutex
		calls    []upstreamCall
		respond  func(w http.ResponseWriter, r *http.Request)
		timeResp func(w http.ResponseWriter, r *http.Request)
	)

	recorded := func() []upstreamCall {
		mutex.Lock()
		defer mutex.Unlock()
		return append([]upstreamCall(nil), calls...)
	}

	do := func(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		gw.handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		calls = nil
		respond = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"items":[]}`))
		}
		timeResp = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"datetime":"2026-10-14T09:30:00.000000+03:00"}`))
		}

		oracle = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mutex.Lock()
			calls = append(calls, upstreamCall{
				method:   r.Method,
				path:     r.URL.Path,
				rawQuery: r.URL.RawQuery,
				body:     string(body),
			})
			mutex.Unlock()
			respond(w, r)
		}))
		clock = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeResp(w, r)
		}))

		cfg = &config.Config{
			Upstream: config.UpstreamConfig{
				BaseURL:       oracle.URL + "/ords/app/table1_11/",
				Table:         "table1_11",
				Timeout:       "2s",
				HealthTimeout: "1s",
			},
			TimeSource: config.TimeSourceConfig{URL: clock.URL, Timeout: "1s"},
			CORS: config.CORSConfig{
				AllowOrigins:     []string{"*"},
				AllowMethods:     []string{"*"},
				AllowHeaders:     []string{"*"},
				AllowCredentials: true,
				MaxAge:           600,
			},
			Metrics: config.MetricsConfig{BufferSize: 100},
		}

		var err error
		gw, err = newGateway(cfg, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		gw.collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
		oracle.Close()
		clock.Close()
	})

	Describe("newGateway", func() {
		It("rejects an unusable upstream url", func() {
			cfg.Upstream.BaseURL = "localhost/table1_11/"
			_, err := newGateway(cfg, slog.New(slog.DiscardHandler))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("table routes", func() {
		It("relays the collection", func() {
			respond = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items":[{"id":1}],"hasMore":false}`))
			}

			rec := do(http.MethodGet, "/oracle/table1_11/", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"items":[{"id":1}],"hasMore":false}`))
			Expect(recorded()).To(ConsistOf(upstreamCall{method: "GET", path: "/ords/app/table1_11/"}))
		})

		It("wraps a created record", func() {
			respond = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id":42}`))
			}

			rec := do(http.MethodPost, "/oracle/table1_11/", `{"customer_name":"Noura"}`, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"success":true,"data":{"id":42}}`))
			Expect(recorded()[0].body).To(Equal(`{"customer_name":"Noura"}`))
		})

		It("forwards get, put and delete to the record url", func() {
			do(http.MethodGet, "/oracle/table1_11/7", "", nil)
			do(http.MethodPut, "/oracle/table1_11/7", `{"status":"shipped"}`, nil)
			do(http.MethodDelete, "/oracle/table1_11/7", "", nil)

			Expect(recorded()).To(Equal([]upstreamCall{
				{method: "GET", path: "/ords/app/table1_11/7"},
				{method: "PUT", path: "/ords/app/table1_11/7", body: `{"status":"shipped"}`},
				{method: "DELETE", path: "/ords/app/table1_11/7"},
			}))
		})

		It("maps an upstream 404 to the error envelope", func() {
			respond = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}

			rec := do(http.MethodGet, "/oracle/table1_11/999", "", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Record not found","status_code":404}`))
		})

		It("passes a decoded id to the upstream without escaping it", func() {
			do(http.MethodDelete, "/oracle/table1_11/7%3Fcascade%3Dtrue", "", nil)

			Expect(recorded()).To(ConsistOf(upstreamCall{
				method:   "DELETE",
				path:     "/ords/app/table1_11/7",
				rawQuery: "cascade=true",
			}))
		})

		It("does not forward extra path segments", func() {
			rec := do(http.MethodGet, "/oracle/table1_11/7/items", "", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Not Found","status_code":404}`))
			Expect(recorded()).To(BeEmpty())
		})

		It("serves only the configured table", func() {
			rec := do(http.MethodGet, "/oracle/other_table/", "", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(recorded()).To(BeEmpty())
		})
	})

	Describe("stats/summary", func() {
		It("takes precedence over the record route", func() {
			respond = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items":[
					{"status":"Pending","total_amount":10.5,"product_name":"Dates"},
					{"status":"shipped","total_amount":"4.5","product_name":"Dates"}
				]}`))
			}

			rec := do(http.MethodGet, "/oracle/table1_11/stats/summary", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"total_records": 2,
				"pending_orders": 1,
				"total_revenue": 15,
				"top_product": "Dates",
				"last_updated": "2026-10-14T09:30:00.000000+03:00"
			}`))
			Expect(recorded()).To(ConsistOf(upstreamCall{method: "GET", path: "/ords/app/table1_11/"}))
		})

		It("degrades with status 200 when the upstream fails", func() {
			respond = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"message":"maintenance"}`))
			}

			rec := do(http.MethodGet, "/oracle/table1_11/stats/summary", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"total_records": 0,
				"pending_orders": 0,
				"total_revenue": 0,
				"top_product": "Error",
				"error": "503: maintenance"
			}`))
		})
	})

	Describe("health", func() {
		It("reports a connected upstream", func() {
			rec := do(http.MethodGet, "/health", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"status": "healthy",
				"oracle_connection": "connected",
				"timestamp": "2026-10-14T09:30:00.000000+03:00"
			}`))
		})

		It("fails when the time service is down", func() {
			timeResp = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}

			rec := do(http.MethodGet, "/health", "", nil)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))

			var envelope map[string]string
			Expect(json.Unmarshal(rec.Body.Bytes(), &envelope)).To(Succeed())
			Expect(envelope["error"]).To(Equal("Internal server error"))
			Expect(envelope["details"]).NotTo(BeEmpty())
		})
	})

	Describe("middleware", func() {
		It("answers preflight requests without reaching the upstream", func() {
			rec := do(http.MethodOptions, "/oracle/table1_11/7", "", map[string]string{
				"Origin":                         "https://dashboard.example.com",
				"Access-Control-Request-Method":  "PUT",
				"Access-Control-Request-Headers": "Content-Type",
			})

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://dashboard.example.com"))
			Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
			Expect(rec.Header().Get("Access-Control-Allow-Headers")).To(Equal("Content-Type"))
			Expect(recorded()).To(BeEmpty())
		})

		It("adds cors headers to simple requests", func() {
			rec := do(http.MethodGet, "/oracle/table1_11/", "", map[string]string{
				"Origin": "https://dashboard.example.com",
			})
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://dashboard.example.com"))
		})

		It("echoes the inbound request id", func() {
			rec := do(http.MethodGet, "/oracle/table1_11/", "", map[string]string{
				"X-Request-ID": "req-123",
			})
			Expect(rec.Header().Get("X-Request-ID")).To(Equal("req-123"))
		})

		It("generates a request id when none is sent", func() {
			rec := do(http.MethodGet, "/health", "", nil)
			Expect(rec.Header().Get("X-Request-ID")).NotTo(BeEmpty())
		})
	})

	Describe("withMiddleware", func() {
		It("logs and answers a request whose handler panics", func() {
			var logs bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&logs, nil))

			h := withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("nil record")
			}), cfg.CORS, log)

			req := httptest.NewRequest(http.MethodGet, "/oracle/table1_11/7", nil)
			req.Header.Set("X-Request-ID", "req-panic")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Internal server error","details":"nil record"}`))
			Expect(rec.Header().Get("X-Request-ID")).To(Equal("req-panic"))

			Expect(logs.String()).To(ContainSubstring(`"msg":"Unhandled exception"`))
			Expect(logs.String()).To(ContainSubstring(`"msg":"Handled request"`))
			Expect(logs.String()).To(MatchRegexp(`"msg":"Handled request","request_id":"req-panic".*"status":500`))
		})
	})

	Describe("metrics", func() {
		It("exposes upstream calls in the prometheus format", func() {
			do(http.MethodGet, "/oracle/table1_11/", "", nil)

			Eventually(func() string {
				return do(http.MethodGet, "/metrics", "", nil).Body.String()
			}).Should(ContainSubstring(`oracle_gateway_upstream_requests_total{method="GET",outcome="200"} 1`))
		})

		It("serves the json snapshot", func() {
			do(http.MethodGet, "/oracle/table1_11/", "", nil)

			Eventually(func() string {
				return do(http.MethodGet, "/metrics/snapshot", "", nil).Body.String()
			}).Should(ContainSubstring(`"GET"`))

			rec := do(http.MethodGet, "/metrics/snapshot", "", nil)
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
		})
	})
})
