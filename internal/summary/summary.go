package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

const (
	StatusPending = "Pending"
	NoProduct     = "None"
	ErrorProduct  = "Error"
)

// Stats is the dashboard summary of the upstream table.
type Stats struct {
	TotalRecords  int     `json:"total_records"`
	PendingOrders int     `json:"pending_orders"`
	TotalRevenue  float64 `json:"total_revenue"`
	TopProduct    string  `json:"top_product"`
	LastUpdated   string  `json:"last_updated,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Degraded is returned in place of Stats when the summary cannot be computed.
func Degraded(err error) Stats {
	return Stats{
		TopProduct: ErrorProduct,
		Error:      err.Error(),
	}
}

var errRevenueOverflow = errors.New("total_revenue overflows")

type listing struct {
	Items []any `json:"items"`
}

// Items extracts the "items" array of a paginated upstream listing. A missing
// or null array yields no items; an element that is not an object is an error.
func Items(body json.RawMessage) ([]map[string]any, error) {
	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	items := make([]map[string]any, 0, len(l.Items))
	for i, raw := range l.Items {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: %v is not an object", i, raw)
		}
		items = append(items, item)
	}
	return items, nil
}

// Compute aggregates items. A total_amount that cannot be read as a number
// fails the whole computation.
func Compute(items []map[string]any) (Stats, error) {
	stats := Stats{
		TotalRecords: len(items),
		TopProduct:   NoProduct,
	}

	counts := make(map[string]int)
	var order []string

	for i, item := range items {
		if status, ok := item["status"].(string); ok && status == StatusPending {
			stats.PendingOrders++
		}

		amount, err := revenue(item)
		if err != nil {
			return Stats{}, fmt.Errorf("item %d: %w", i, err)
		}
		stats.TotalRevenue += amount
		if math.IsInf(stats.TotalRevenue, 0) {
			return Stats{}, errRevenueOverflow
		}

		product, ok := item["product_name"].(string)
		if !ok || product == "" {
			continue
		}
		if counts[product] == 0 {
			order = append(order, product)
		}
		counts[product]++
	}

	// Ties go to the product that appeared first.
	best := 0
	for _, product := range order {
		if counts[product] > best {
			best = counts[product]
			stats.TopProduct = product
		}
	}

	return stats, nil
}

func revenue(item map[string]any) (float64, error) {
	raw, ok := item["total_amount"]
	if !ok {
		return 0, nil
	}
	if raw == nil {
		return 0, fmt.Errorf("total_amount is null")
	}

	switch v := raw.(type) {
	case map[string]any, []any:
		return 0, fmt.Errorf("total_amount %v is not a number", raw)
	case string:
		raw = strings.TrimSpace(v)
		if raw == "" {
			return 0, fmt.Errorf("total_amount %q is not a number", v)
		}
	}

	amount, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("total_amount %q is not a number", fmt.Sprint(raw))
	}
	return amount, nil
}
