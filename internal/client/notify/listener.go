// Package notify subscribes to server-side session termination events so a
// running client learns about a forced logout immediately instead of on its
// next 401.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/logging"
)

// sessionTerminated mirrors the server's event payload.
type sessionTerminated struct {
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Listener consumes session.terminated events from the broker.
type Listener struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  logging.Logger
}

// NewListener dials the broker and declares the session.terminated direct
// exchange with the same properties the server uses, so either side can
// start first.
func NewListener(url string, l logging.Logger) (*Listener, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		common.SessionTerminatedExchange,
		"direct",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare failed: %w", err)
	}

	return &Listener{
		conn:    conn,
		channel: ch,
		logger:  l.With("module", "notify"),
	}, nil
}

// Run binds a per-user queue to the exchange and consumes events until ctx
// is cancelled. The user id is the routing key, so this client only ever
// receives its own events; anything else in the queue is malformed and is
// rejected without requeue to avoid redelivery loops.
func (l *Listener) Run(ctx context.Context, userID string, onTerminated func(reason string)) error {
	queue := common.SessionTerminatedQueueName(userID)

	if _, err := l.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("amqp queue declare failed: %w", err)
	}

	if err := l.channel.QueueBind(
		queue,
		userID, // routing key
		common.SessionTerminatedExchange,
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("amqp queue bind failed: %w", err)
	}

	if err := l.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("amqp qos failed: %w", err)
	}

	tag, err := common.MakeRandHexString(8)
	if err != nil {
		return fmt.Errorf("failed to generate consumer tag: %w", err)
	}

	msgs, err := l.channel.Consume(
		queue,
		"stayhub-"+tag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}

			reason, err := decodeTermination(msg.Body, userID)
			if err != nil {
				l.logger.Error(ctx, "rejecting termination event", "error", err.Error())
				_ = msg.Nack(false, false) // do not requeue, it would redeliver immediately
				continue
			}

			l.logger.Info(ctx, "session terminated by server", "reason", reason)
			_ = msg.Ack(false)
			onTerminated(reason)
		}
	}
}

// decodeTermination parses an event body and checks it is addressed to
// userID. The binding already guarantees the routing, so a mismatch means a
// stray message that must be dropped, not redelivered.
func decodeTermination(body []byte, userID string) (string, error) {
	var ev sessionTerminated
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("malformed event: %w", err)
	}
	if ev.UserID != userID {
		return "", fmt.Errorf("event addressed to another user")
	}
	return ev.Reason, nil
}

func (l *Listener) Close() error {
	_ = l.channel.Close()
	return l.conn.Close()
}
