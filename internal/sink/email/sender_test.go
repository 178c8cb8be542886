//go:build unit

package email

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to  []string
	msg string
}

func newSenderFixture(t *testing.T, sendErr error) (*Sender, *[]sentMail) {
	t.Helper()

	var sent []sentMail

	sender, err := NewSender("smtp.nb.no:587", "noreply@nb.no", withSendFunc(
		func(_ context.Context, _ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
			if sendErr != nil {
				return sendErr
			}

			sent = append(sent, sentMail{to: to, msg: string(msg)})

			return nil
		}))
	require.NoError(t, err)

	return sender, &sent
}

func orderEvent(t *testing.T, kind domain.EventKind, address string) *domain.Event {
	t.Helper()

	order, err := domain.NewOrder(domain.HostSystemAxiell, "mlt-12345-order", []string{"mlt-12345"}, domain.OrderTypeLoan, domain.Receiver{Name: "Kari", Address: address}, "")
	require.NoError(t, err)

	event, err := domain.NewOrderEvent(kind, order)
	require.NoError(t, err)

	return event
}

func TestDispatchSendsConfirmation(t *testing.T) {
	t.Parallel()

	sender, sent := newSenderFixture(t, nil)

	err := sender.Dispatch(context.Background(), orderEvent(t, domain.EventOrderConfirmation, "kari@example.org"))
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	require.Equal(t, []string{"kari@example.org"}, (*sent)[0].to)
	require.Contains(t, (*sent)[0].msg, "Subject: Order mlt-12345-order received")
	require.Contains(t, (*sent)[0].msg, "Hello Kari")
}

func TestDispatchSubjectsPerKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    domain.EventKind
		subject string
	}{
		{domain.EventOrderConfirmation, "received"},
		{domain.EventOrderPickup, "ready for pickup"},
		{domain.EventOrderCancellation, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			sender, sent := newSenderFixture(t, nil)

			err := sender.Dispatch(context.Background(), orderEvent(t, tt.kind, "kari@example.org"))
			require.NoError(t, err)
			require.Len(t, *sent, 1)
			require.Contains(t, (*sent)[0].msg, tt.subject)
		})
	}
}

func TestDispatchSkipsMissingAddress(t *testing.T) {
	t.Parallel()

	sender, sent := newSenderFixture(t, nil)

	err := sender.Dispatch(context.Background(), orderEvent(t, domain.EventOrderConfirmation, ""))
	require.NoError(t, err, "no receiver address means nobody to notify, not a failure")
	require.Empty(t, *sent)
}

func TestDispatchSMTPFailureIsUnableToNotify(t *testing.T) {
	t.Parallel()

	sender, _ := newSenderFixture(t, errors.New("connection refused"))

	err := sender.Dispatch(context.Background(), orderEvent(t, domain.EventOrderPickup, "kari@example.org"))
	require.ErrorIs(t, err, domain.ErrUnableToNotify)
}

func TestDispatchAbandonsStalledServer(t *testing.T) {
	t.Parallel()

	// A listener that accepts connections but never sends the SMTP greeting.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Never send the greeting; hold the connection until the client
		// gives up.
		_, _ = conn.Read(make([]byte, 1))
	}()

	sender, err := NewSender(listener.Addr().String(), "noreply@nb.no")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sender.Dispatch(ctx, orderEvent(t, domain.EventOrderConfirmation, "kari@example.org"))

	require.ErrorIs(t, err, domain.ErrUnableToNotify)
	require.Less(t, time.Since(start), 5*time.Second, "a stalled server must not block past the context deadline")
}

func TestNewSenderValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSender("", "noreply@nb.no")
	require.Error(t, err)

	_, err = NewSender("smtp.nb.no:587", " ")
	require.Error(t, err)
}
