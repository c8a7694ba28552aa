package enums

import "fmt"

// DeliveryStatus tracks the courier-driven lifecycle of a delivery order.
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "pending"
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusPickedUp       DeliveryStatus = "picked_up"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusReturned       DeliveryStatus = "returned"
	DeliveryStatusRefused        DeliveryStatus = "customer_refused"
	DeliveryStatusCancelled      DeliveryStatus = "cancelled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusAssigned,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusReturned,
	DeliveryStatusRefused,
	DeliveryStatusCancelled,
}

// Couriers occasionally skip intermediate statuses, so every non-terminal
// status may advance to any later one. Moving backwards is rejected.
var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusPending:        0,
	DeliveryStatusAssigned:       1,
	DeliveryStatusPickedUp:       2,
	DeliveryStatusInTransit:      3,
	DeliveryStatusOutForDelivery: 4,
}

var terminalDeliveryStatuses = map[DeliveryStatus]bool{
	DeliveryStatusDelivered: true,
	DeliveryStatusReturned:  true,
	DeliveryStatusRefused:   true,
	DeliveryStatusCancelled: true,
}

// IsValid reports whether the value matches the canonical delivery status enum.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the courier considers the delivery finished.
func (s DeliveryStatus) IsTerminal() bool {
	return terminalDeliveryStatuses[s]
}

// CanTransitionTo reports whether advancing from s to next is allowed.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !s.IsValid() || !next.IsValid() || s == next {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return true
	}
	return deliveryStatusRank[next] > deliveryStatusRank[s]
}

// ParseDeliveryStatus converts raw input into DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
