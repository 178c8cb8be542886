package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines persistence operations for outbox records.
//
// Save participates in an ambient transaction when the context carries one,
// which is how the application service makes the domain write and the outbox
// write succeed or fail together.
type Store interface {
	// Save persists a new pending record. It never silently drops a write:
	// a storage timeout or unavailability surfaces as an error.
	Save(ctx context.Context, record *Record) error

	// ListUnprocessed returns the category's records with no processed
	// timestamp and no dead-letter timestamp, oldest first, bounded by
	// limit. The ordering is a fairness policy, not a delivery-order
	// guarantee.
	ListUnprocessed(ctx context.Context, category Category, limit int) ([]*Record, error)

	// MarkProcessed sets the processed timestamp if and only if the record
	// is still unprocessed. The boolean reports whether this caller won the
	// update; losing the race is harmless under at-least-once delivery.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error)

	// MarkFailed increments the attempt counter and records the dispatch
	// error. Once attempts reach maxAttempts the record is dead-lettered.
	MarkFailed(ctx context.Context, id uuid.UUID, dispatchErr string, maxAttempts int) error

	// ListAll returns every record; diagnostics and administration only.
	ListAll(ctx context.Context) ([]*Record, error)
}
