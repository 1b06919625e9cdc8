// Mockupstream is an in-memory stand-in for the Oracle REST table and the
// time service, used to run the gateway locally.
//
// Usage:
//
//	go run ./scripts/mockupstream -port 8081
//	UPSTREAM_BASE_URL=http://localhost:8081/ords/app/table1_11/ \
//	TIMESOURCE_URL=http://localhost:8081/time go run ./cmd
//
// Records get a random UUID as id. -fail-every N answers every Nth table
// request with 503 and -latency delays every table request.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/oracle-gateway/pkg/logger"
)

type table struct {
	mutex   sync.Mutex
	order   []string
	records map[string]map[string]any
}

func newTable() *table {
	return &table{records: make(map[string]map[string]any)}
}

func (t *table) list() []map[string]any {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	items := make([]map[string]any, 0, len(t.order))
	for _, id := range t.order {
		items = append(items, t.records[id])
	}
	return items
}

func (t *table) insert(record map[string]any) map[string]any {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	id := uuid.NewString()
	record["id"] = id
	t.records[id] = record
	t.order = append(t.order, id)
	return record
}

func (t *table) get(id string) (map[string]any, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	record, ok := t.records[id]
	return record, ok
}

func (t *table) replace(id string, record map[string]any) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.records[id]; !ok {
		return false
	}
	record["id"] = id
	t.records[id] = record
	return true
}

func (t *table) remove(id string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.records[id]; !ok {
		return false
	}
	delete(t.records, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeRecord(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("record must be a JSON object")
	}
	return record, nil
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	prefix := flag.String("prefix", "/ords/app/table1_11/", "collection path, with trailing slash")
	failEvery := flag.Int("fail-every", 0, "answer every Nth table request with 503 (0 disables)")
	latency := flag.Duration("latency", 0, "delay added to every table request")
	timezone := flag.String("timezone", "Asia/Riyadh", "zone reported by /time")
	flag.Parse()

	log := logger.New("debug", false, "dev")

	zone, err := time.LoadLocation(*timezone)
	if err != nil {
		log.Error("Unknown timezone", slog.String("timezone", *timezone), slog.Any("err", err))
		zone = time.UTC
	}

	records := newTable()
	var counter atomic.Int64

	mux := http.NewServeMux()

	tableRoute := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			log.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("from", r.RemoteAddr))

			if *latency > 0 {
				time.Sleep(*latency)
			}
			if n := counter.Add(1); *failEvery > 0 && n%int64(*failEvery) == 0 {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Database temporarily unavailable"})
				return
			}
			fn(w, r)
		})
	}

	tableRoute("GET "+*prefix+"{$}", func(w http.ResponseWriter, r *http.Request) {
		items := records.list()
		writeJSON(w, http.StatusOK, map[string]any{
			"items":   items,
			"hasMore": false,
			"count":   len(items),
		})
	})

	tableRoute("POST "+*prefix+"{$}", func(w http.ResponseWriter, r *http.Request) {
		record, err := decodeRecord(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, records.insert(record))
	})

	tableRoute("GET "+*prefix+"{id}", func(w http.ResponseWriter, r *http.Request) {
		record, ok := records.get(r.PathValue("id"))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	tableRoute("PUT "+*prefix+"{id}", func(w http.ResponseWriter, r *http.Request) {
		record, err := decodeRecord(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if !records.replace(r.PathValue("id"), record) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	tableRoute("DELETE "+*prefix+"{id}", func(w http.ResponseWriter, r *http.Request) {
		if !records.remove(r.PathValue("id")) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"rowsDeleted": 1})
	})

	mux.HandleFunc("GET /time", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().In(zone)
		writeJSON(w, http.StatusOK, map[string]any{
			"timezone": zone.String(),
			"datetime": now.Format("2006-01-02T15:04:05.000000-07:00"),
			"unixtime": now.Unix(),
		})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting mock upstream", slog.String("address", addr), slog.String("collection", *prefix))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server failed", slog.Any("err", err))
	}
}
