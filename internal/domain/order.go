// Package domain holds the entities and domain events brokered between host
// cataloguing systems and the physical storage system.
package domain

import (
	"strings"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNotStarted OrderStatus = "NOT_STARTED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusDeleted    OrderStatus = "DELETED"
)

// IsValid reports whether the status is a known order status.
func (status OrderStatus) IsValid() bool {
	switch status {
	case OrderStatusNotStarted, OrderStatusInProgress, OrderStatusCompleted, OrderStatusDeleted:
		return true
	default:
		return false
	}
}

// OrderType distinguishes physical loans from digitization requests.
type OrderType string

const (
	OrderTypeLoan         OrderType = "LOAN"
	OrderTypeDigitization OrderType = "DIGITIZATION"
)

// IsValid reports whether the type is a known order type.
func (orderType OrderType) IsValid() bool {
	return orderType == OrderTypeLoan || orderType == OrderTypeDigitization
}

// OrderLineStatus is the per-line picking state.
type OrderLineStatus string

const (
	OrderLineStatusNotStarted OrderLineStatus = "NOT_STARTED"
	OrderLineStatusPicked     OrderLineStatus = "PICKED"
	OrderLineStatusFailed     OrderLineStatus = "FAILED"
)

// OrderLine references one host product inside an order.
type OrderLine struct {
	HostItemID string          `json:"hostItemId"`
	Status     OrderLineStatus `json:"status"`
}

// Receiver is the contact information for the party receiving an order.
type Receiver struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Order is an order for items, owned by a host cataloguing system.
// (HostSystem, HostOrderID) is unique across the service.
type Order struct {
	HostSystem  HostSystem  `json:"hostSystem"`
	HostOrderID string      `json:"hostOrderId"`
	Status      OrderStatus `json:"status"`
	Lines       []OrderLine `json:"orderLines"`
	Type        OrderType   `json:"orderType"`
	Receiver    Receiver    `json:"receiver"`
	CallbackURL string      `json:"callbackUrl,omitempty"`
}

// NewOrder validates the creation payload and returns an order in its
// initial state with every line not started.
func NewOrder(
	hostSystem HostSystem,
	hostOrderID string,
	hostItemIDs []string,
	orderType OrderType,
	receiver Receiver,
	callbackURL string,
) (*Order, error) {
	if !hostSystem.IsValid() {
		return nil, NewValidationError("unknown host system %q", string(hostSystem))
	}

	if strings.TrimSpace(hostOrderID) == "" {
		return nil, NewValidationError("host order id must not be blank")
	}

	if len(hostItemIDs) == 0 {
		return nil, NewValidationError("order must contain at least one order line")
	}

	if !orderType.IsValid() {
		return nil, NewValidationError("unknown order type %q", string(orderType))
	}

	lines := make([]OrderLine, 0, len(hostItemIDs))

	for _, hostItemID := range hostItemIDs {
		if strings.TrimSpace(hostItemID) == "" {
			return nil, NewValidationError("order line host item id must not be blank")
		}

		lines = append(lines, OrderLine{HostItemID: hostItemID, Status: OrderLineStatusNotStarted})
	}

	return &Order{
		HostSystem:  hostSystem,
		HostOrderID: hostOrderID,
		Status:      OrderStatusNotStarted,
		Lines:       lines,
		Type:        orderType,
		Receiver:    receiver,
		CallbackURL: callbackURL,
	}, nil
}

// Snapshot returns a deep copy, so recorded events never alias live state.
func (order *Order) Snapshot() Order {
	copied := *order
	copied.Lines = make([]OrderLine, len(order.Lines))
	copy(copied.Lines, order.Lines)

	return copied
}

// SetStatus transitions the order status. Deleted orders cannot change state.
func (order *Order) SetStatus(next OrderStatus) error {
	if !next.IsValid() {
		return NewValidationError("unknown order status %q", string(next))
	}

	if order.Status == OrderStatusDeleted {
		return NewIllegalStateError("order %q is deleted and cannot change status", order.HostOrderID)
	}

	order.Status = next

	return nil
}

// MarkLinePicked records a successful pick for one order line and moves the
// order into progress. An order with every line picked is completed.
func (order *Order) MarkLinePicked(hostItemID string) error {
	if order.Status == OrderStatusDeleted {
		return NewIllegalStateError("order %q is deleted and cannot be picked", order.HostOrderID)
	}

	found := false
	allPicked := true

	for i := range order.Lines {
		if order.Lines[i].HostItemID == hostItemID {
			order.Lines[i].Status = OrderLineStatusPicked
			found = true
		}

		if order.Lines[i].Status != OrderLineStatusPicked {
			allPicked = false
		}
	}

	if !found {
		return NewNotFoundError("order %q has no line for item %q", order.HostOrderID, hostItemID)
	}

	if allPicked {
		order.Status = OrderStatusCompleted
	} else {
		order.Status = OrderStatusInProgress
	}

	return nil
}
