package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/oracle-gateway/internal/middleware"
	"github.com/angeloszaimis/oracle-gateway/internal/response"
	"github.com/angeloszaimis/oracle-gateway/internal/timesource"
	"github.com/angeloszaimis/oracle-gateway/internal/upstream"
)

// Forwarder sends one request to the upstream table. See upstream.Client.
type Forwarder interface {
	Forward(ctx context.Context, method, path string, body []byte) (json.RawMessage, error)
}

// Prober reports upstream connectivity. See healthcheck.Prober.
type Prober interface {
	Check(ctx context.Context) string
}

type Handler struct {
	logger   *slog.Logger
	upstream Forwarder
	prober   Prober
	clock    timesource.Clock
}

func New(logger *slog.Logger, forwarder Forwarder, prober Prober, clock timesource.Clock) *Handler {
	return &Handler{
		logger:   logger,
		upstream: forwarder,
		prober:   prober,
		clock:    clock,
	}
}

// List relays the upstream collection.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.log(r).Info("Fetching all records from Oracle")
	h.forward(w, r, http.MethodGet, "", nil)
}

// Create forwards a new record. The body must be a JSON object.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.unhandled(w, r, err)
		return
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		h.unhandled(w, r, err)
		return
	}
	if record == nil {
		h.unhandled(w, r, errors.New("request body must be a JSON object"))
		return
	}

	customer := "Unknown"
	if name, ok := record["customer_name"]; ok {
		customer = fmt.Sprint(name)
	}
	h.log(r).Info("Creating new record", slog.String("customer_name", customer))

	h.forward(w, r, http.MethodPost, "", body)
}

// Get relays a single record.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.log(r).Info("Fetching record", slog.String("id", id))
	h.forward(w, r, http.MethodGet, id, nil)
}

// Update forwards a replacement record. The body must be valid JSON.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.unhandled(w, r, err)
		return
	}
	if !json.Valid(body) {
		h.unhandled(w, r, errors.New("request body is not valid JSON"))
		return
	}

	id := r.PathValue("id")
	h.log(r).Info("Updating record", slog.String("id", id))
	h.forward(w, r, http.MethodPut, id, body)
}

// Delete removes a record.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.log(r).Info("Deleting record", slog.String("id", id))
	h.forward(w, r, http.MethodDelete, id, nil)
}

// NotFound answers unknown routes with the error envelope.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	response.Error(w, http.StatusNotFound, "Not Found")
}

// The id is passed to the upstream as is; see upstream.Client.URL.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, method, id string, body []byte) {
	result, err := h.upstream.Forward(r.Context(), method, id, body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.Raw(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		response.Error(w, upErr.StatusCode, upErr.Message)
		return
	}

	h.unhandled(w, r, err)
}

func (h *Handler) unhandled(w http.ResponseWriter, r *http.Request, err error) {
	h.log(r).Error("Unhandled exception", slog.String("error", err.Error()))
	response.Unhandled(w, err.Error())
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return h.logger.With(slog.String("request_id", middleware.RequestIDFromContext(r.Context())))
}
