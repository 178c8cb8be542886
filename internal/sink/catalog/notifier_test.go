//go:build unit

package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/stretchr/testify/require"
)

func orderCreatedEvent(t *testing.T) *domain.Event {
	t.Helper()

	order, err := domain.NewOrder(domain.HostSystemAlma, "alma-1-order", []string{"alma-1"}, domain.OrderTypeDigitization, domain.Receiver{Name: "Ola"}, "")
	require.NoError(t, err)

	event, err := domain.NewOrderEvent(domain.EventOrderCreated, order)
	require.NoError(t, err)

	return event
}

func TestDispatchPostsNotification(t *testing.T) {
	t.Parallel()

	var received notification

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/notifications", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(payload, &received))

		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	notifier, err := NewNotifier(server.URL)
	require.NoError(t, err)

	event := orderCreatedEvent(t)
	require.NoError(t, notifier.Dispatch(context.Background(), event))

	require.Equal(t, event.ID.String(), received.EventID)
	require.Equal(t, string(domain.EventOrderCreated), received.Kind)
	require.JSONEq(t, string(event.Payload), string(received.Body))
}

func TestDispatchNon2xxIsUnableToNotify(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	notifier, err := NewNotifier(server.URL)
	require.NoError(t, err)

	err = notifier.Dispatch(context.Background(), orderCreatedEvent(t))
	require.ErrorIs(t, err, domain.ErrUnableToNotify)
}

func TestDispatchTransportFailureIsUnableToNotify(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	notifier, err := NewNotifier(server.URL)
	require.NoError(t, err)

	err = notifier.Dispatch(context.Background(), orderCreatedEvent(t))
	require.ErrorIs(t, err, domain.ErrUnableToNotify)
}

func TestNewNotifierRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewNotifier("not a url")
	require.Error(t, err)
}
