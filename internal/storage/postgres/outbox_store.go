package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/google/uuid"
)

// OutboxStore persists outbox records. Save joins the ambient transaction
// when the context carries one, which is what makes the domain write and the
// outbox write atomic.
type OutboxStore struct {
	conn *Connection
}

// NewOutboxStore wires an outbox store to the shared connection.
func NewOutboxStore(conn *Connection) (*OutboxStore, error) {
	if conn == nil {
		return nil, errors.New("postgres connection is required")
	}

	return &OutboxStore{conn: conn}, nil
}

// Save inserts a pending record.
func (store *OutboxStore) Save(ctx context.Context, record *outbox.Record) error {
	exec, err := store.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("save outbox record: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		INSERT INTO outbox (id, event_id, category, kind, payload, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = exec.ExecContext(ctx, query,
		record.ID,
		record.EventID,
		string(record.Category),
		string(record.Kind),
		[]byte(record.Payload),
		record.Attempts,
		record.LastError,
		record.CreatedAt,
	)
	if err != nil {
		return mapRepoError("save outbox record", err)
	}

	return nil
}

// ListUnprocessed returns the category's pending records oldest first,
// skipping records already dispatched or dead-lettered.
func (store *OutboxStore) ListUnprocessed(ctx context.Context, category outbox.Category, limit int) ([]*outbox.Record, error) {
	exec, err := store.conn.executor(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed outbox records: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT id, event_id, category, kind, payload, attempts, last_error, created_at, processed_at, dead_at
		FROM outbox
		WHERE category = $1 AND processed_at IS NULL AND dead_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := exec.QueryContext(ctx, query, string(category), limit)
	if err != nil {
		return nil, mapRepoError("list unprocessed outbox records", err)
	}

	return collectRecords(rows, "list unprocessed outbox records")
}

// MarkProcessed stamps the record processed if and only if it still is not.
// The boolean reports whether this caller won the update.
func (store *OutboxStore) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error) {
	exec, err := store.conn.executor(ctx)
	if err != nil {
		return false, fmt.Errorf("mark outbox record processed: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE outbox
		SET processed_at = $2
		WHERE id = $1 AND processed_at IS NULL`

	result, err := exec.ExecContext(ctx, query, id, processedAt.UTC())
	if err != nil {
		return false, mapRepoError("mark outbox record processed", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, mapRepoError("mark outbox record processed", err)
	}

	return affected == 1, nil
}

// MarkFailed bumps the attempt counter, records the dispatch error and
// dead-letters the record once it exhausts maxAttempts.
func (store *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, dispatchErr string, maxAttempts int) error {
	exec, err := store.conn.executor(ctx)
	if err != nil {
		return fmt.Errorf("mark outbox record failed: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    dead_at = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE dead_at END
		WHERE id = $1 AND processed_at IS NULL`

	_, err = exec.ExecContext(ctx, query, id, dispatchErr, maxAttempts, time.Now().UTC())
	if err != nil {
		return mapRepoError("mark outbox record failed", err)
	}

	return nil
}

// ListAll returns every record, newest first. Diagnostics only.
func (store *OutboxStore) ListAll(ctx context.Context) ([]*outbox.Record, error) {
	exec, err := store.conn.executor(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outbox records: %w: %s", domain.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT id, event_id, category, kind, payload, attempts, last_error, created_at, processed_at, dead_at
		FROM outbox
		ORDER BY created_at DESC`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, mapRepoError("list outbox records", err)
	}

	return collectRecords(rows, "list outbox records")
}

func collectRecords(rows *sql.Rows, op string) ([]*outbox.Record, error) {
	defer rows.Close()

	var records []*outbox.Record

	for rows.Next() {
		var (
			record      outbox.Record
			payload     []byte
			processedAt sql.NullTime
			deadAt      sql.NullTime
		)

		err := rows.Scan(
			&record.ID,
			&record.EventID,
			&record.Category,
			&record.Kind,
			&payload,
			&record.Attempts,
			&record.LastError,
			&record.CreatedAt,
			&processedAt,
			&deadAt,
		)
		if err != nil {
			return nil, mapRepoError(op, err)
		}

		record.Payload = payload

		if processedAt.Valid {
			t := processedAt.Time
			record.ProcessedAt = &t
		}

		if deadAt.Valid {
			t := deadAt.Time
			record.DeadAt = &t
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}

	return records, nil
}
