// Package outbox provides the transactional outbox: durable event records
// written in the same unit of work as the domain state change, drained later
// by per-category processors with at-least-once delivery.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/google/uuid"
)

// MaxPayloadBytes caps the stored payload size.
const MaxPayloadBytes = 1 << 20

// Record wraps exactly one domain event for reliable delivery to exactly one
// category's sink. An event interesting to several categories fans out into
// one record per category, each with its own processed marking, so the first
// category to deliver never starves the others.
//
// ProcessedAt is nil until the category's processor successfully dispatched
// the event and is set exactly once. DeadAt is nil until the record exhausts
// its dispatch attempts; dead records are excluded from drains but never
// deleted.
type Record struct {
	ID          uuid.UUID        `json:"id"`
	EventID     uuid.UUID        `json:"eventId"`
	Category    Category         `json:"category"`
	Kind        domain.EventKind `json:"kind"`
	Payload     json.RawMessage  `json:"payload"`
	Attempts    int              `json:"attempts"`
	LastError   string           `json:"lastError,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	ProcessedAt *time.Time       `json:"processedAt,omitempty"`
	DeadAt      *time.Time       `json:"deadAt,omitempty"`
}

// NewRecord validates and wraps a domain event as a pending outbox record for
// one category.
func NewRecord(category Category, event *domain.Event) (*Record, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrCategoryUnknown, category)
	}

	if event == nil {
		return nil, ErrEventRequired
	}

	if event.ID == uuid.Nil {
		return nil, ErrEventIDRequired
	}

	if !event.Kind.IsValid() {
		return nil, ErrEventKindUnknown
	}

	if len(event.Payload) == 0 {
		return nil, ErrPayloadRequired
	}

	if len(event.Payload) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	if !json.Valid(event.Payload) {
		return nil, ErrPayloadNotJSON
	}

	return &Record{
		ID:        uuid.New(),
		EventID:   event.ID,
		Category:  category,
		Kind:      event.Kind,
		Payload:   event.Payload,
		CreatedAt: event.Timestamp.UTC(),
	}, nil
}

// RecordsFor fans one domain event out into pending records, one per
// interested category.
func RecordsFor(event *domain.Event) ([]*Record, error) {
	if event == nil {
		return nil, ErrEventRequired
	}

	categories := CategoriesFor(event.Kind)
	if len(categories) == 0 {
		return nil, ErrEventKindUnknown
	}

	records := make([]*Record, 0, len(categories))

	for _, category := range categories {
		record, err := NewRecord(category, event)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// Event reconstructs the wrapped domain event.
func (record *Record) Event() *domain.Event {
	return &domain.Event{
		ID:        record.EventID,
		Kind:      record.Kind,
		Timestamp: record.CreatedAt,
		Payload:   record.Payload,
	}
}

// Processed reports whether the record was successfully dispatched.
func (record *Record) Processed() bool {
	return record.ProcessedAt != nil
}

// Dead reports whether the record exhausted its dispatch attempts.
func (record *Record) Dead() bool {
	return record.DeadAt != nil
}
