package main

import (
	"net/http"

	"github.com/angeloszaimis/oracle-gateway/internal/handler"
	"github.com/angeloszaimis/oracle-gateway/internal/metrics"
)

// setupRouter registers the gateway routes for table. {id} matches a single
// segment, so stats/summary never reaches Get.
func setupRouter(h *handler.Handler, metricsCollector *metrics.Collector, table string) *http.ServeMux {
	mux := http.NewServeMux()
	prefix := "/oracle/" + table + "/"

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET "+prefix+"{$}", h.List)
	mux.HandleFunc("POST "+prefix+"{$}", h.Create)
	mux.HandleFunc("GET "+prefix+"stats/summary", h.Summary)
	mux.HandleFunc("GET "+prefix+"{id}", h.Get)
	mux.HandleFunc("PUT "+prefix+"{id}", h.Update)
	mux.HandleFunc("DELETE "+prefix+"{id}", h.Delete)

	mux.Handle("GET /metrics", metricsCollector.PrometheusHandler())
	mux.HandleFunc("GET /metrics/snapshot", metricsCollector.Handler())

	mux.HandleFunc("/", h.NotFound)

	return mux
}
