package lemonsqueezy

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Webhook event names the shop reacts to.
const (
	EventOrderCreated  = "order_created"
	EventOrderRefunded = "order_refunded"
)

// Event is the envelope LemonSqueezy posts to webhook endpoints.
type Event struct {
	Meta EventMeta `json:"meta"`
	Data EventData `json:"data"`
}

type EventMeta struct {
	EventName  string         `json:"event_name"`
	TestMode   bool           `json:"test_mode"`
	CustomData map[string]any `json:"custom_data,omitempty"`
}

type EventData struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes OrderAttributes `json:"attributes"`
}

// OrderAttributes carries the order fields copied onto the local row.
type OrderAttributes struct {
	Identifier  string  `json:"identifier"`
	OrderNumber int64   `json:"order_number"`
	UserName    string  `json:"user_name"`
	UserEmail   string  `json:"user_email"`
	Currency    string  `json:"currency"`
	Subtotal    int64   `json:"subtotal"`
	Tax         int64   `json:"tax"`
	Total       int64   `json:"total"`
	Status      string  `json:"status"`
	Refunded    bool    `json:"refunded"`
	RefundedAt  *string `json:"refunded_at"`
	TestMode    bool    `json:"test_mode"`
	URLs        struct {
		Receipt string `json:"receipt"`
	} `json:"urls"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	event.Meta.EventName = strings.TrimSpace(event.Meta.EventName)
	return &event, nil
}

// IsPaid reports whether the provider considers the order paid.
func (a OrderAttributes) IsPaid() bool {
	return strings.EqualFold(strings.TrimSpace(a.Status), "paid")
}

// LocalOrderID extracts custom_data.order_id. The provider echoes custom values
// as strings but older payloads carried numbers, so both are accepted.
func (m EventMeta) LocalOrderID() (uint64, bool) {
	raw, ok := m.CustomData["order_id"]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case string:
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return id, true
	case float64:
		if v <= 0 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// SessionID extracts custom_data.session_id when present.
func (m EventMeta) SessionID() string {
	if v, ok := m.CustomData["session_id"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
