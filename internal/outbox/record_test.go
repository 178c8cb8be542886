//go:build unit

package outbox

import (
	"bytes"
	"testing"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewRecordWrapsEvent(t *testing.T) {
	t.Parallel()

	order, err := domain.NewOrder(domain.HostSystemAxiell, "mlt-12345-order", []string{"mlt-12345"}, domain.OrderTypeLoan, domain.Receiver{Name: "Kari"}, "")
	require.NoError(t, err)

	event, err := domain.NewOrderEvent(domain.EventOrderCreated, order)
	require.NoError(t, err)

	record, err := NewRecord(CategoryCatalog, event)
	require.NoError(t, err)

	require.NotEqual(t, uuid.Nil, record.ID)
	require.Equal(t, event.ID, record.EventID)
	require.Equal(t, CategoryCatalog, record.Category)
	require.Equal(t, domain.EventOrderCreated, record.Kind)
	require.Equal(t, event.Timestamp, record.CreatedAt)
	require.Zero(t, record.Attempts)
	require.False(t, record.Processed())
	require.False(t, record.Dead())

	rebuilt := record.Event()
	require.Equal(t, event.ID, rebuilt.ID)
	require.JSONEq(t, string(event.Payload), string(rebuilt.Payload))
}

func TestRecordsForGivesEachCategoryItsOwnRecord(t *testing.T) {
	t.Parallel()

	event := &domain.Event{
		ID:        uuid.New(),
		Kind:      domain.EventOrderCreated,
		Timestamp: time.Now().UTC(),
		Payload:   []byte(`{"hostOrderId":"mlt-1-order"}`),
	}

	records, err := RecordsFor(event)
	require.NoError(t, err)
	require.Len(t, records, 3)

	seen := make(map[uuid.UUID]bool)
	for _, record := range records {
		require.False(t, seen[record.ID], "every fanned-out record carries its own id")
		seen[record.ID] = true
		require.Equal(t, event.ID, record.EventID)
	}

	_, err = RecordsFor(nil)
	require.ErrorIs(t, err, ErrEventRequired)
}

func TestNewRecordValidation(t *testing.T) {
	t.Parallel()

	valid := &domain.Event{
		ID:        uuid.New(),
		Kind:      domain.EventItemCreated,
		Timestamp: time.Now().UTC(),
		Payload:   []byte(`{"hostId":"mlt-1"}`),
	}

	tests := []struct {
		name    string
		mutate  func(event *domain.Event)
		wantErr error
	}{
		{"missing id", func(event *domain.Event) { event.ID = uuid.Nil }, ErrEventIDRequired},
		{"unknown kind", func(event *domain.Event) { event.Kind = "item.archived" }, ErrEventKindUnknown},
		{"empty payload", func(event *domain.Event) { event.Payload = nil }, ErrPayloadRequired},
		{"oversized payload", func(event *domain.Event) { event.Payload = bytes.Repeat([]byte("a"), MaxPayloadBytes+1) }, ErrPayloadTooLarge},
		{"invalid json", func(event *domain.Event) { event.Payload = []byte("{not json") }, ErrPayloadNotJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event := *valid
			tt.mutate(&event)

			_, err := NewRecord(CategoryStorage, &event)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewRecord(CategoryStorage, nil)
	require.ErrorIs(t, err, ErrEventRequired)

	_, err = NewRecord("parcel", valid)
	require.ErrorIs(t, err, ErrCategoryUnknown)
}
