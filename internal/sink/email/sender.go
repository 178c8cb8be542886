// Package email sends order notification emails to receivers over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
)

// sendFunc is the context-aware equivalent of smtp.SendMail; replaced in
// tests.
type sendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Sender turns order email events into SMTP messages addressed to the
// order's receiver.
type Sender struct {
	addr   string
	from   string
	auth   smtp.Auth
	send   sendFunc
	logger log.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithAuth sets the SMTP authentication.
func WithAuth(auth smtp.Auth) Option {
	return func(sender *Sender) {
		sender.auth = auth
	}
}

// WithLogger sets a structured logger for the sender.
func WithLogger(logger log.Logger) Option {
	return func(sender *Sender) {
		if logger != nil {
			sender.logger = logger
		}
	}
}

func withSendFunc(send sendFunc) Option {
	return func(sender *Sender) {
		if send != nil {
			sender.send = send
		}
	}
}

// NewSender builds an SMTP sender. addr is host:port; from is the sender
// address on every outgoing message.
func NewSender(addr, from string, opts ...Option) (*Sender, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("smtp address is required")
	}

	if strings.TrimSpace(from) == "" {
		return nil, errors.New("smtp from address is required")
	}

	sender := &Sender{
		addr:   addr,
		from:   from,
		send:   sendMail,
		logger: log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sender)
		}
	}

	return sender, nil
}

// Dispatch sends the notification email matching the event kind. An order
// without a receiver address has nobody to notify and is treated as done.
func (sender *Sender) Dispatch(ctx context.Context, event *domain.Event) error {
	order, err := event.OrderPayload()
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrServer, err)
	}

	if strings.TrimSpace(order.Receiver.Address) == "" {
		sender.logger.Log(ctx, log.LevelDebug, "order has no receiver address, skipping email",
			log.String("host_order_id", order.HostOrderID))

		return nil
	}

	subject, body, err := composeMessage(event.Kind, order)
	if err != nil {
		return err
	}

	msg := buildMessage(sender.from, order.Receiver.Address, subject, body)

	if err := sender.send(ctx, sender.addr, sender.auth, sender.from, []string{order.Receiver.Address}, msg); err != nil {
		return fmt.Errorf("%w: send email: %s", domain.ErrUnableToNotify, err)
	}

	sender.logger.Log(ctx, log.LevelInfo, "notification email sent",
		log.String("host_order_id", order.HostOrderID),
		log.String("kind", string(event.Kind)),
	)

	return nil
}

// sendMail is smtp.SendMail with the dial, the SMTP conversation and the
// connection lifetime all bound to the context, so a stalled server cannot
// block a drain past its dispatch timeout.
func sendMail(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()

			return err
		}
	}

	// Closing the connection on cancellation unblocks any read or write the
	// smtp client is sitting in.
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		conn.Close()

		return err
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()

		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}

	if _, err := writer.Write(msg); err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	return client.Quit()
}

func composeMessage(kind domain.EventKind, order *domain.Order) (subject, body string, err error) {
	switch kind {
	case domain.EventOrderConfirmation:
		return fmt.Sprintf("Order %s received", order.HostOrderID),
			fmt.Sprintf("Hello %s,\r\n\r\nWe have received your order %s with %d line(s). You will be notified when it is ready.\r\n",
				order.Receiver.Name, order.HostOrderID, len(order.Lines)),
			nil
	case domain.EventOrderPickup:
		return fmt.Sprintf("Order %s is ready for pickup", order.HostOrderID),
			fmt.Sprintf("Hello %s,\r\n\r\nYour order %s has been picked and is ready.\r\n",
				order.Receiver.Name, order.HostOrderID),
			nil
	case domain.EventOrderCancellation:
		return fmt.Sprintf("Order %s cancelled", order.HostOrderID),
			fmt.Sprintf("Hello %s,\r\n\r\nYour order %s has been cancelled.\r\n",
				order.Receiver.Name, order.HostOrderID),
			nil
	default:
		return "", "", fmt.Errorf("%w: no email template for %q", domain.ErrServer, string(kind))
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var builder strings.Builder

	builder.WriteString("From: " + from + "\r\n")
	builder.WriteString("To: " + to + "\r\n")
	builder.WriteString("Subject: " + subject + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)

	return []byte(builder.String())
}
