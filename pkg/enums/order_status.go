package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusNoAnswerPending OrderStatus = "no_answer_pending"
	OrderStatusReturned        OrderStatus = "returned"
	OrderStatusCustomerRefused OrderStatus = "customer_refused"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusNoAnswerPending,
	OrderStatusReturned,
	OrderStatusCustomerRefused,
	OrderStatusCancelled,
}

// orderTransitions is the closed transition table for orders. Statuses not
// present as keys are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusProcessing,
		OrderStatusDelivered,
		OrderStatusNoAnswerPending,
		OrderStatusReturned,
		OrderStatusCustomerRefused,
		OrderStatusCancelled,
	},
	OrderStatusProcessing: {
		OrderStatusDelivered,
		OrderStatusNoAnswerPending,
		OrderStatusReturned,
		OrderStatusCustomerRefused,
		OrderStatusCancelled,
	},
	OrderStatusNoAnswerPending: {
		OrderStatusPending,
		OrderStatusCancelled,
	},
	OrderStatusDelivered: {
		OrderStatusCompleted,
		OrderStatusReturned,
	},
	OrderStatusCompleted: {
		OrderStatusReturned,
	},
}

// IsValid reports whether the value matches the canonical order status enum.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition table allows moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
