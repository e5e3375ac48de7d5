package enums

import "fmt"

// DeliveryStatus tracks in-game fulfillment independently of payment.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusFailed     DeliveryStatus = "failed"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusProcessing,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
}

var deliveryStatusTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:    {DeliveryStatusProcessing, DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusProcessing: {DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusPending},
	DeliveryStatusFailed:     {DeliveryStatusPending, DeliveryStatusProcessing, DeliveryStatusDelivered},
	DeliveryStatusDelivered:  {},
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed; same-state
// writes are accepted.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	for _, candidate := range deliveryStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
