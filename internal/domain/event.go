package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of domain event variants. Every outbox
// processor switches exhaustively over this set; adding a kind forces every
// processor to be revisited.
type EventKind string

const (
	EventItemCreated       EventKind = "item.created"
	EventItemUpdated       EventKind = "item.updated"
	EventOrderCreated      EventKind = "order.created"
	EventOrderUpdated      EventKind = "order.updated"
	EventOrderDeleted      EventKind = "order.deleted"
	EventOrderConfirmation EventKind = "order.confirmation"
	EventOrderPickup       EventKind = "order.pickup"
	EventOrderCancellation EventKind = "order.cancellation"
)

// Kinds returns every known event kind.
func Kinds() []EventKind {
	return []EventKind{
		EventItemCreated,
		EventItemUpdated,
		EventOrderCreated,
		EventOrderUpdated,
		EventOrderDeleted,
		EventOrderConfirmation,
		EventOrderPickup,
		EventOrderCancellation,
	}
}

// IsValid reports whether the kind belongs to the closed variant set.
func (kind EventKind) IsValid() bool {
	switch kind {
	case EventItemCreated, EventItemUpdated,
		EventOrderCreated, EventOrderUpdated, EventOrderDeleted,
		EventOrderConfirmation, EventOrderPickup, EventOrderCancellation:
		return true
	default:
		return false
	}
}

// Event is one domain event. The payload is a frozen snapshot of the entity
// at the moment of the state change, serialized at creation time, so later
// entity mutations never alter a recorded event.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Kind      EventKind       `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// OrderRef is the payload of order-deleted events, which carry only the
// identifying pair rather than a full snapshot.
type OrderRef struct {
	HostSystem  HostSystem `json:"hostSystem"`
	HostOrderID string     `json:"hostOrderId"`
}

func newEvent(kind EventKind, payload any) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	return &Event{
		ID:        uuid.New(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   body,
	}, nil
}

// NewItemEvent snapshots the item into an item.created or item.updated event.
func NewItemEvent(kind EventKind, item *Item) (*Event, error) {
	if kind != EventItemCreated && kind != EventItemUpdated {
		return nil, NewValidationError("kind %q is not an item event", string(kind))
	}

	snapshot := item.Snapshot()

	return newEvent(kind, &snapshot)
}

// NewOrderEvent snapshots the order into an order-scoped event.
func NewOrderEvent(kind EventKind, order *Order) (*Event, error) {
	switch kind {
	case EventOrderCreated, EventOrderUpdated,
		EventOrderConfirmation, EventOrderPickup, EventOrderCancellation:
	default:
		return nil, NewValidationError("kind %q is not an order snapshot event", string(kind))
	}

	snapshot := order.Snapshot()

	return newEvent(kind, &snapshot)
}

// NewOrderDeletedEvent records an order deletion by reference.
func NewOrderDeletedEvent(hostSystem HostSystem, hostOrderID string) (*Event, error) {
	return newEvent(EventOrderDeleted, &OrderRef{HostSystem: hostSystem, HostOrderID: hostOrderID})
}

// ItemPayload decodes the event payload as an item snapshot.
func (event *Event) ItemPayload() (*Item, error) {
	var item Item
	if err := json.Unmarshal(event.Payload, &item); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Kind, err)
	}

	return &item, nil
}

// OrderPayload decodes the event payload as an order snapshot.
func (event *Event) OrderPayload() (*Order, error) {
	var order Order
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Kind, err)
	}

	return &order, nil
}

// OrderRefPayload decodes the event payload as an order reference.
func (event *Event) OrderRefPayload() (*OrderRef, error) {
	var ref OrderRef
	if err := json.Unmarshal(event.Payload, &ref); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Kind, err)
	}

	return &ref, nil
}
