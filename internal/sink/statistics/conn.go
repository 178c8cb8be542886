package statistics

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connect dials the broker, opens a dedicated channel and declares the
// statistics exchange as a durable topic exchange. The caller owns closing
// both the connection and the publisher built on the channel.
func Connect(uri, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("dial statistics broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()

		return nil, nil, fmt.Errorf("open statistics channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()

		return nil, nil, fmt.Errorf("declare statistics exchange: %w", err)
	}

	return conn, ch, nil
}
