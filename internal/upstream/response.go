package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type created struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func mapResponse(status int, body []byte) (json.RawMessage, *Error) {
	switch status {
	case http.StatusOK:
		if !json.Valid(body) {
			return nil, internal(fmt.Errorf("upstream status %d: body is not valid JSON", status))
		}
		return json.RawMessage(body), nil

	case http.StatusCreated:
		if !json.Valid(body) {
			return nil, internal(fmt.Errorf("upstream status %d: body is not valid JSON", status))
		}
		wrapped, err := json.Marshal(created{Success: true, Data: json.RawMessage(body)})
		if err != nil {
			return nil, internal(err)
		}
		return wrapped, nil

	case http.StatusNotFound:
		return nil, notFound()

	default:
		return nil, &Error{
			Kind:       KindUpstream,
			StatusCode: status,
			Message:    upstreamMessage(status, body),
		}
	}
}

// upstreamMessage prefers the "message" field of a JSON object body. A
// non-string message is rendered as text; objects and arrays as JSON.
func upstreamMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return fmt.Sprintf("Oracle API returned status %d", status)
	}

	switch msg := payload["message"].(type) {
	case nil:
		return fmt.Sprintf("Oracle API error: %d", status)
	case string:
		return msg
	case map[string]any, []any:
		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Sprint(msg)
		}
		return string(encoded)
	default:
		return fmt.Sprint(msg)
	}
}
