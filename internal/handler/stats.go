package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/oracle-gateway/internal/response"
	"github.com/angeloszaimis/oracle-gateway/internal/summary"
)

// Summary always answers 200. When anything fails, the body is the degraded
// summary carrying the error message.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.summarize(r.Context())
	if err != nil {
		h.log(r).Error("Stats calculation error", slog.String("error", err.Error()))
		stats = summary.Degraded(err)
	}

	response.JSON(w, http.StatusOK, stats)
}

func (h *Handler) summarize(ctx context.Context) (summary.Stats, error) {
	body, err := h.upstream.Forward(ctx, http.MethodGet, "", nil)
	if err != nil {
		return summary.Stats{}, err
	}

	items, err := summary.Items(body)
	if err != nil {
		return summary.Stats{}, err
	}

	stats, err := summary.Compute(items)
	if err != nil {
		return summary.Stats{}, err
	}

	stats.LastUpdated, err = h.clock.Now(ctx)
	if err != nil {
		return summary.Stats{}, err
	}

	return stats, nil
}
