package client

import (
	"encoding/json"
	"strings"
)

// messageFields are checked in priority order.
var messageFields = []string{"error", "message", "detail"}

// extractMessage pulls the first usable message out of an error body.
// An empty result makes the caller fall back to "server error <status>".
func extractMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	for _, field := range messageFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		if msg := messageFrom(raw); msg != "" {
			return msg
		}
	}
	return ""
}

// messageFrom accepts a plain string or a validation list of {"msg": "..."} items.
func messageFrom(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg != "" {
			msgs = append(msgs, it.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
