package handler

import (
	"net/http"

	"github.com/angeloszaimis/oracle-gateway/internal/response"
)

type healthResponse struct {
	Status           string `json:"status"`
	OracleConnection string `json:"oracle_connection"`
	Timestamp        string `json:"timestamp"`
}

// Health reports upstream connectivity. The time lookup is not guarded: when
// it fails the request fails with the unhandled-fault envelope, whatever the
// upstream state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	connection := h.prober.Check(r.Context())

	timestamp, err := h.clock.Now(r.Context())
	if err != nil {
		h.unhandled(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, healthResponse{
		Status:           "healthy",
		OracleConnection: connection,
		Timestamp:        timestamp,
	})
}
